// Package rpc registers unary gRPC services whose requests and responses are
// google.protobuf.Struct messages, and describes them to the reflection
// service so grpcurl and the CLI can discover them.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const structType = ".google.protobuf.Struct"

// Handler serves one unary method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type Method struct {
	Name    string
	Handler Handler
}

// Service is a fully qualified service name plus its methods.
type Service struct {
	Name    string
	Methods []Method
}

// Register describes svc in the global file registry and registers it on
// server.
func Register(server *grpc.Server, svc Service) error {
	file, err := describe(svc)
	if err != nil {
		return err
	}

	desc := grpc.ServiceDesc{
		ServiceName: svc.Name,
		HandlerType: (*any)(nil),
		Metadata:    file,
	}
	for _, m := range svc.Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    unaryHandler(svc.Name, m),
		})
	}
	server.RegisterService(&desc, struct{}{})
	return nil
}

func unaryHandler(service string, m Method) grpc.MethodHandler {
	fullMethod := "/" + service + "/" + m.Name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m.Handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return m.Handler(ctx, req.(*structpb.Struct))
		})
	}
}

// describe builds and registers a file descriptor for svc. It returns the
// file path used as service metadata.
func describe(svc Service) (string, error) {
	idx := strings.LastIndex(svc.Name, ".")
	if idx <= 0 || idx == len(svc.Name)-1 {
		return "", fmt.Errorf("service name %q must be package qualified", svc.Name)
	}
	pkg, name := svc.Name[:idx], svc.Name[idx+1:]
	path := strings.ReplaceAll(pkg, ".", "/") + "/" + strings.ToLower(name) + ".proto"

	if _, err := protoregistry.GlobalFiles.FindFileByPath(path); err == nil {
		return path, nil
	}

	service := &descriptorpb.ServiceDescriptorProto{Name: proto.String(name)}
	for _, m := range svc.Methods {
		service.Method = append(service.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.Name),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		})
	}
	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(path),
		Package:    proto.String(pkg),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Service:    []*descriptorpb.ServiceDescriptorProto{service},
		Syntax:     proto.String("proto3"),
	}
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", svc.Name, err)
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		return "", fmt.Errorf("register %s: %w", svc.Name, err)
	}
	return path, nil
}

// Invoke calls service/method on conn.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, method string, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+service+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToStruct converts any JSON-encodable value to a Struct. v must encode to a
// JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// FromStruct decodes s into v using JSON field names.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
