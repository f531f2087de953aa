// Package kafka publishes artifact documents to a sink topic for downstream
// renderers that prefer a stream over polling the artifact directory.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cityflow-precompute/internal/config"
	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

// Writer publishes streamline and grid documents to the configured sink
// topic. It implements pipeline.ArtifactSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteStreamlines publishes one area's streamline document.
func (w *Writer) WriteStreamlines(ctx context.Context, doc domain.StreamlineDocument) error {
	msg, err := streamlineMessage(doc)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// WriteGrids publishes one area's grid documents in a single WriteMessages
// call.
func (w *Writer) WriteGrids(ctx context.Context, docs []domain.GridDocument) error {
	if len(docs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(docs))
	for i := range docs {
		msg, err := gridMessage(docs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// streamlineMessage marshals a streamline document into a Kafka message
// keyed by area so all artifacts of one area land on one partition.
func streamlineMessage(doc domain.StreamlineDocument) (kafkago.Message, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize streamline document: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(doc.AreaID),
		Value:   data,
		Headers: artifactHeaders("streamlines", doc.GeneratedAt),
	}, nil
}

func gridMessage(doc domain.GridDocument) (kafkago.Message, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize grid document: %w", err)
	}
	msg := kafkago.Message{
		Key:     []byte(doc.AreaID),
		Value:   data,
		Headers: artifactHeaders("grid", doc.GeneratedAt),
	}
	msg.Headers = append(msg.Headers, kafkago.Header{Key: "variable", Value: []byte(doc.Variable)})
	return msg, nil
}

func artifactHeaders(docType string, generatedAt time.Time) []kafkago.Header {
	return []kafkago.Header{
		{Key: "doc_type", Value: []byte(docType)},
		{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
	}
}
