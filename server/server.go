// Package server exposes a split city model as a CityJSONSeq feature api.
package server

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const MaxBodySize = 32 * 1000 * 1000 // 32MB

var meter = otel.Meter("github.com/royalcat/cjstream/server")

// Run serves idx on address until ctx is cancelled.
//
//	GET /header            the stream header line
//	GET /features/{id}     one encoded feature line
//	GET /features?bbox=... a CityJSONSeq stream of matching features
//	GET /metrics           prometheus metrics
func Run(ctx context.Context, address string, idx *Index) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, idx)
}

// Serve serves idx on ln until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, idx *Index) error {
	log := slog.Default()

	metricFeatureCallCount, err := meter.Int64Counter("http_feature_call_total")
	if err != nil {
		return err
	}
	metricBBoxCallCount, err := meter.Int64Counter("http_bbox_call_total")
	if err != nil {
		return err
	}
	metricFeaturesServed, err := meter.Int64Counter("features_served_total")
	if err != nil {
		return err
	}
	s := &server{
		idx: idx,

		metricFeatureCallCount: metricFeatureCallCount,
		metricBBoxCallCount:    metricBBoxCallCount,
		metricFeaturesServed:   metricFeaturesServed,
	}

	r := router.New()
	r.GET("/header", s.HeaderHandler)
	r.GET("/features/{id}", s.FeatureHandler)
	r.GET("/features", s.FeaturesBBoxHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	server := &fasthttp.Server{
		ReadTimeout:        time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            r.Handler,
	}

	go func() {
		log.Info("Server listening", "address", ln.Addr().String(), "features", idx.Len())
		// fasthttp returns nil after a graceful shutdown
		if err := server.Serve(ln); err != nil {
			stdlog.Fatalf("Serve(): %v", err)
		}
	}()

	// wait cancel
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

type server struct {
	idx *Index

	metricFeatureCallCount metric.Int64Counter
	metricBBoxCallCount    metric.Int64Counter
	metricFeaturesServed   metric.Int64Counter
}

const contentTypeJSONSeq = "application/city+json-seq"

func (s *server) HeaderHandler(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType(contentTypeJSONSeq)
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(s.idx.Header())
}

func (s *server) FeatureHandler(ctx *fasthttp.RequestCtx) {
	s.metricFeatureCallCount.Add(ctx, 1)

	id := ctx.UserValue("id").(string)
	line, ok := s.idx.Feature(id)
	if !ok {
		ctx.Response.SetStatusCode(http.StatusNotFound)
		return
	}

	s.metricFeaturesServed.Add(ctx, 1)
	ctx.Response.Header.SetContentType(contentTypeJSONSeq)
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(line)
}

// FeaturesBBoxHandler streams the header plus every feature whose centroid
// falls inside the requested box, one line each.
func (s *server) FeaturesBBoxHandler(ctx *fasthttp.RequestCtx) {
	s.metricBBoxCallCount.Add(ctx, 1)

	bbox, err := parseBBox(ctx.QueryArgs().Peek("bbox"))
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString(fmt.Sprintf("invalid bbox: %v", err))
		return
	}

	ctx.Response.Header.SetContentType(contentTypeJSONSeq)
	ctx.Response.SetStatusCode(http.StatusOK)
	w := ctx.Response.BodyWriter()
	w.Write(s.idx.Header())
	w.Write([]byte{'\n'})

	served := int64(0)
	s.idx.SearchBBox(
		[2]float64{bbox[0], bbox[1]},
		[2]float64{bbox[2], bbox[3]},
		func(_ string, line []byte) bool {
			w.Write(line)
			w.Write([]byte{'\n'})
			served++
			return true
		})
	s.metricFeaturesServed.Add(ctx, served)
}
