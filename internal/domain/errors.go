package domain

import "errors"

var (
	// ErrProbeUnavailable means sampling the watched app failed or timed out.
	// It is recovered locally as "no active file" and never surfaced.
	ErrProbeUnavailable = errors.New("source probe unavailable")

	// ErrChannelHandshakeFailed means connecting to the presence channel failed.
	ErrChannelHandshakeFailed = errors.New("channel handshake failed")

	// ErrChannelSendFailed means a payload passed suppression but the channel rejected it.
	ErrChannelSendFailed = errors.New("channel send failed")

	// ErrNotConnected means a publish was attempted without a live connection.
	ErrNotConnected = errors.New("not connected")
)
