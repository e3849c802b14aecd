// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logic is a tiny two channel logic analyzer for I²C.
//
// A Capture records every transition of SDA and SCL with its time stamp.
// Decode turns the recorded waveform back into start and stop conditions and
// acknowledged bytes without any knowledge of who produced it, so it can be
// used to check a controller against the I²C protocol.
//
// The waveform can be shown in a terminal with ANSI colors or drawn as a PNG
// timing diagram.
package logic
