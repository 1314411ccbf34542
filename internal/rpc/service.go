// Package rpc exposes the prediction orchestrator over gRPC with a JSON codec.
package rpc

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thebtf/ecoscore/internal/model"
	"github.com/thebtf/ecoscore/pkg/models"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ecoscore.v1.PredictionService"

// PredictRequest asks for a stored-signal prediction for one user.
type PredictRequest struct {
	UserID string `json:"user_id"`
}

// QuickPredictRequest scores caller-supplied signals without persisting.
type QuickPredictRequest struct {
	Signals models.Signals `json:"signals"`
}

// HistoryRequest lists a user's past predictions, newest first.
type HistoryRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// HistoryResponse carries the listed predictions.
type HistoryResponse struct {
	Entries []*models.PredictionLogEntry `json:"entries"`
}

// ModelStatusRequest is empty.
type ModelStatusRequest struct{}

// PredictionServiceServer is the server API for ecoscore.v1.PredictionService.
type PredictionServiceServer interface {
	Predict(context.Context, *PredictRequest) (*models.PredictionOutcome, error)
	QuickPredict(context.Context, *QuickPredictRequest) (*models.PredictionOutcome, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	ModelStatus(context.Context, *ModelStatusRequest) (*model.Status, error)
}

// UnimplementedPredictionServiceServer answers Unimplemented for every method.
type UnimplementedPredictionServiceServer struct{}

func (UnimplementedPredictionServiceServer) Predict(context.Context, *PredictRequest) (*models.PredictionOutcome, error) {
	return nil, status.Error(codes.Unimplemented, "method Predict not implemented")
}
func (UnimplementedPredictionServiceServer) QuickPredict(context.Context, *QuickPredictRequest) (*models.PredictionOutcome, error) {
	return nil, status.Error(codes.Unimplemented, "method QuickPredict not implemented")
}
func (UnimplementedPredictionServiceServer) History(context.Context, *HistoryRequest) (*HistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method History not implemented")
}
func (UnimplementedPredictionServiceServer) ModelStatus(context.Context, *ModelStatusRequest) (*model.Status, error) {
	return nil, status.Error(codes.Unimplemented, "method ModelStatus not implemented")
}

// RegisterPredictionServiceServer registers srv with s.
func RegisterPredictionServiceServer(s grpclib.ServiceRegistrar, srv PredictionServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PredictionServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "Predict", Handler: unaryHandler("Predict", func(srv PredictionServiceServer, ctx context.Context, in *PredictRequest) (any, error) {
			return srv.Predict(ctx, in)
		})},
		{MethodName: "QuickPredict", Handler: unaryHandler("QuickPredict", func(srv PredictionServiceServer, ctx context.Context, in *QuickPredictRequest) (any, error) {
			return srv.QuickPredict(ctx, in)
		})},
		{MethodName: "History", Handler: unaryHandler("History", func(srv PredictionServiceServer, ctx context.Context, in *HistoryRequest) (any, error) {
			return srv.History(ctx, in)
		})},
		{MethodName: "ModelStatus", Handler: unaryHandler("ModelStatus", func(srv PredictionServiceServer, ctx context.Context, in *ModelStatusRequest) (any, error) {
			return srv.ModelStatus(ctx, in)
		})},
	},
	Streams: []grpclib.StreamDesc{},
}

// unaryHandler builds the decode/intercept/dispatch glue for one method.
func unaryHandler[Req any](method string, call func(PredictionServiceServer, context.Context, *Req) (any, error)) grpclib.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PredictionServiceServer), ctx, in)
		}
		info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PredictionServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls ecoscore.v1.PredictionService using the JSON codec.
type Client struct {
	cc grpclib.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpclib.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpclib.CallOption) error {
	opts = append([]grpclib.CallOption{grpclib.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

// Predict scores the user's stored signals.
func (c *Client) Predict(ctx context.Context, in *PredictRequest, opts ...grpclib.CallOption) (*models.PredictionOutcome, error) {
	out := new(models.PredictionOutcome)
	if err := c.invoke(ctx, "Predict", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// QuickPredict scores the supplied signals.
func (c *Client) QuickPredict(ctx context.Context, in *QuickPredictRequest, opts ...grpclib.CallOption) (*models.PredictionOutcome, error) {
	out := new(models.PredictionOutcome)
	if err := c.invoke(ctx, "QuickPredict", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// History lists past predictions.
func (c *Client) History(ctx context.Context, in *HistoryRequest, opts ...grpclib.CallOption) (*HistoryResponse, error) {
	out := new(HistoryResponse)
	if err := c.invoke(ctx, "History", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ModelStatus reports the loaded model.
func (c *Client) ModelStatus(ctx context.Context, opts ...grpclib.CallOption) (*model.Status, error) {
	out := new(model.Status)
	if err := c.invoke(ctx, "ModelStatus", &ModelStatusRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
