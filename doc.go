/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package evnet is the per-connection HTTP/1.x pipeline: an
// asynchronous duplex socket with connect/write/end/destroy lifecycle,
// an incremental HTTP/1.x parser, and the event-emission fabric that
// binds callbacks to both. It is the hot path from raw TCP/pipe bytes
// to typed HTTP messages and back — not a full HTTP server or client.
package evnet
