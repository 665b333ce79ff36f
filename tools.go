//go:build tools

package tools

import (
	_ "google.golang.org/grpc/cmd/protoc-gen-go-grpc"
)
