// Package service describes the remote services a client can call.
//
// A Service is a named group of Methods. On the wire, services and methods are
// identified by 32-bit ids derived from their names with Hash, so both peers
// agree on ids without exchanging a schema.
package service

import (
	"fmt"

	"rpc-endpoint/codec"
)

// MethodType is the streaming shape of a method.
type MethodType int

const (
	Unary MethodType = iota
	ServerStreaming
	ClientStreaming
	BidirectionalStreaming
)

func (t MethodType) String() string {
	switch t {
	case Unary:
		return "Unary"
	case ServerStreaming:
		return "ServerStreaming"
	case ClientStreaming:
		return "ClientStreaming"
	case BidirectionalStreaming:
		return "BidirectionalStreaming"
	}
	return fmt.Sprintf("MethodType(%d)", int(t))
}

// HasClientStream reports whether the client sends a stream of requests.
func (t MethodType) HasClientStream() bool {
	return t == ClientStreaming || t == BidirectionalStreaming
}

// HasServerStream reports whether the server sends a stream of responses.
func (t MethodType) HasServerStream() bool {
	return t == ServerStreaming || t == BidirectionalStreaming
}

// Method is one callable RPC. Request and Response encode the payloads sent
// and received for this method.
type Method struct {
	service  *Service
	name     string
	id       uint32
	typ      MethodType
	Request  codec.Codec
	Response codec.Codec
}

func newMethod(name string, typ MethodType, req, resp codec.Codec) *Method {
	return &Method{
		name:     name,
		id:       Hash(name),
		typ:      typ,
		Request:  req,
		Response: resp,
	}
}

func UnaryMethod(name string, req, resp codec.Codec) *Method {
	return newMethod(name, Unary, req, resp)
}

func ServerStreamingMethod(name string, req, resp codec.Codec) *Method {
	return newMethod(name, ServerStreaming, req, resp)
}

func ClientStreamingMethod(name string, req, resp codec.Codec) *Method {
	return newMethod(name, ClientStreaming, req, resp)
}

func BidirectionalStreamingMethod(name string, req, resp codec.Codec) *Method {
	return newMethod(name, BidirectionalStreaming, req, resp)
}

func (m *Method) Name() string      { return m.name }
func (m *Method) ID() uint32        { return m.id }
func (m *Method) Type() MethodType  { return m.typ }
func (m *Method) Service() *Service { return m.service }

// FullName returns "package.Service.Method".
func (m *Method) FullName() string {
	if m.service == nil {
		return m.name
	}
	return m.service.name + "." + m.name
}

func (m *Method) String() string {
	return m.FullName()
}

// Service is an immutable set of methods under one name.
type Service struct {
	name    string
	id      uint32
	methods map[uint32]*Method
	byName  map[string]*Method
}

// NewService binds methods to a service. A method may belong to only one
// service; two methods whose names hash to the same id are rejected.
func NewService(name string, methods ...*Method) (*Service, error) {
	s := &Service{
		name:    name,
		id:      Hash(name),
		methods: make(map[uint32]*Method, len(methods)),
		byName:  make(map[string]*Method, len(methods)),
	}
	for _, m := range methods {
		if m.service != nil {
			return nil, fmt.Errorf("service: method %s already belongs to %s", m.name, m.service.name)
		}
		if other, ok := s.methods[m.id]; ok {
			return nil, fmt.Errorf("service: methods %s and %s in %s have the same id %08x", other.name, m.name, name, m.id)
		}
		m.service = s
		s.methods[m.id] = m
		s.byName[m.name] = m
	}
	return s, nil
}

// MustService is NewService that panics on error, for package-level tables.
func MustService(name string, methods ...*Method) *Service {
	s, err := NewService(name, methods...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Service) Name() string { return s.name }
func (s *Service) ID() uint32   { return s.id }

// Method returns the method with the given name, or nil.
func (s *Service) Method(name string) *Method {
	return s.byName[name]
}

// MethodByID returns the method with the given id, or nil.
func (s *Service) MethodByID(id uint32) *Method {
	return s.methods[id]
}

func (s *Service) String() string {
	return s.name
}
