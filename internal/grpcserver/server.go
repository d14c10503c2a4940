// Package grpcserver exposes the insight aggregates as the dealflow.Insights
// gRPC service. Messages travel as JSON through a registered codec.
package grpcserver

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dealflow/internal/insights"
	"dealflow/internal/store"
	"dealflow/pkg/models"
)

const ServiceName = "dealflow.Insights"

// WindowRequest selects a year window and a result size. Zero values fall
// back to the dashboard defaults.
type WindowRequest struct {
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
	Top  int `json:"top,omitempty"`
}

type SummaryResponse struct {
	Window  insights.Window  `json:"window"`
	Summary insights.Summary `json:"summary"`
}

type RankedResponse struct {
	Window insights.Window   `json:"window"`
	Items  []insights.Ranked `json:"items"`
}

// InsightsServer is the server API for dealflow.Insights.
type InsightsServer interface {
	Summary(context.Context, *WindowRequest) (*SummaryResponse, error)
	TopSectors(context.Context, *WindowRequest) (*RankedResponse, error)
	TopRegions(context.Context, *WindowRequest) (*RankedResponse, error)
}

type Server struct {
	Store *store.Store
}

func NewServer(st *store.Store) *Server {
	return &Server{Store: st}
}

func (req *WindowRequest) window() (insights.Window, error) {
	w := insights.DefaultWindow()
	if req == nil {
		return w, nil
	}
	if req.From != 0 {
		w.From = req.From
	}
	if req.To != 0 {
		w.To = req.To
	}
	if w.From > w.To {
		return w, status.Error(codes.InvalidArgument, "from must not be after to")
	}
	return w, nil
}

func (req *WindowRequest) top() int {
	if req == nil || req.Top <= 0 {
		return insights.DefaultTopN
	}
	return req.Top
}

// deals loads the deals inside the requested window.
func (s *Server) deals(ctx context.Context, req *WindowRequest) (insights.Window, []models.Deal, error) {
	w, err := req.window()
	if err != nil {
		return w, nil, err
	}
	all, err := s.Store.AllDeals(ctx)
	if err != nil {
		return w, nil, status.Error(codes.Internal, "load deals failed")
	}
	return w, insights.FilterDeals(all, w), nil
}

func (s *Server) Summary(ctx context.Context, req *WindowRequest) (*SummaryResponse, error) {
	w, deals, err := s.deals(ctx, req)
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{Window: w, Summary: insights.Summarize(deals)}, nil
}

func (s *Server) TopSectors(ctx context.Context, req *WindowRequest) (*RankedResponse, error) {
	w, deals, err := s.deals(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RankedResponse{Window: w, Items: insights.TopSectors(deals, req.top())}, nil
}

func (s *Server) TopRegions(ctx context.Context, req *WindowRequest) (*RankedResponse, error) {
	w, deals, err := s.deals(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RankedResponse{Window: w, Items: insights.TopRegions(deals, req.top())}, nil
}
