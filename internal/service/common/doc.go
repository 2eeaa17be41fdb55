// Package common holds transport helpers shared by the device services.
//
// It provides the physical-twin gRPC client and server lifecycle, the TCP
// accept loop and request helpers for '#'-terminated tokens, and the UDP
// datagram reader that feeds a bounded inbox.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
