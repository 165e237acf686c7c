//go:build !linux
// +build !linux

package common

func ErrnoName(e Errno) string { return tableErrnoName(e) }

func SignalName(sig int) string { return tableSignalName(sig) }
