package clog

import (
	"connectrpc.com/connect"
)

type Level int

const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

func HTTPStatusToLevel(status int) Level {
	switch {
	case status == 499:
		return LevelInfo
	case status >= 100 && status < 400:
		return LevelInfo
	case status >= 400 && status < 500:
		return LevelWarn
	default:
		return LevelError
	}
}

// Codes that point at a server-side fault. Everything else is the caller's
// doing and is logged at info.
var serverFaultCodes = map[connect.Code]bool{
	connect.CodeUnknown:           true,
	connect.CodeResourceExhausted: true,
	connect.CodeUnimplemented:     true,
	connect.CodeInternal:          true,
	connect.CodeUnavailable:       true,
	connect.CodeDataLoss:          true,
}

func ConnectCodeToLevel(code connect.Code) Level {
	if code == 0 {
		return LevelInfo
	}
	if serverFaultCodes[code] || code > connect.CodeUnauthenticated {
		return LevelError
	}
	return LevelInfo
}
