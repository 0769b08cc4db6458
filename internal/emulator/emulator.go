// Package emulator holds the client plumbing shared by every seeder: how to point a
// Google Cloud client at a local emulator and how to recognise "already exists".
package emulator

import (
	"errors"

	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// ConflictPolicy decides what a seeder does when a schema object or row already exists
type ConflictPolicy string

const (
	ConflictSkip ConflictPolicy = "skip"
	ConflictFail ConflictPolicy = "fail"
)

// Valid reports whether p is a known policy
func (p ConflictPolicy) Valid() bool {
	return p == ConflictSkip || p == ConflictFail
}

// ClientOptions returns the options needed to reach an emulator listening on host.
// An empty host returns nil so that the client library falls back to its own
// defaults, including the *_EMULATOR_HOST environment variables.
func ClientOptions(host string) []option.ClientOption {
	if host == "" {
		return nil
	}
	return []option.ClientOption{
		option.WithEndpoint(host),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

// IsAlreadyExists reports whether err, or anything it wraps, carries the gRPC
// AlreadyExists code
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := status.FromError(e); ok && s.Code() == codes.AlreadyExists {
			return true
		}
	}
	return false
}

// Tolerate reports whether err may be ignored under policy p
func (p ConflictPolicy) Tolerate(err error) bool {
	return p == ConflictSkip && IsAlreadyExists(err)
}
