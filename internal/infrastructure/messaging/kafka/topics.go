package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

const (
	TopicStructureUploaded = "biodockviz.structure.uploaded"
	TopicStructureParsed   = "biodockviz.structure.parsed"
	TopicStructureAnalyzed = "biodockviz.structure.analyzed"
	TopicAnalysisJobs      = "biodockviz.analysis.jobs"

	DeadLetterSuffix = ".dlq"
)

// Event types carried in EventEnvelope.EventType.
const (
	EventStructureUploaded = "structure.uploaded"
	EventStructureParsed   = "structure.parsed"
	EventStructureAnalyzed = "structure.analyzed"
	EventAnalysisRequested = "analysis.requested"
)

const (
	SchemaVersion = "v1"

	headerEventType     = "event_type"
	headerSource        = "source_service"
	headerSchemaVersion = "schema_version"
	headerCorrelationID = "correlation_id"
	headerOriginalTopic = "original_topic"
	headerErrorMessage  = "error_message"
	headerAttempts      = "attempts"
)

// DeadLetterTopic returns the dead-letter topic paired with topic.
func DeadLetterTopic(topic string) string {
	if strings.HasSuffix(topic, DeadLetterSuffix) {
		return topic
	}
	return topic + DeadLetterSuffix
}

// EventEnvelope wraps every event published by BioDockViz.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type StructureUploadedPayload struct {
	StructureID string `json:"structure_id"`
	ContentHash string `json:"content_hash"`
	FileType    string `json:"file_type"`
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	ObjectKey   string `json:"object_key,omitempty"`
}

type StructureParsedPayload struct {
	StructureID  string `json:"structure_id"`
	AtomCount    int    `json:"atom_count"`
	BondCount    int    `json:"bond_count"`
	WarningCount int    `json:"warning_count"`
}

type StructureAnalyzedPayload struct {
	StructureID       string         `json:"structure_id"`
	BondCount         int            `json:"bond_count"`
	InteractionCounts map[string]int `json:"interaction_counts"`
	DurationMs        int64          `json:"duration_ms"`
}

// Job stages carried by AnalysisJobPayload.
const (
	JobStageParse   = "parse"
	JobStageAnalyze = "analyze"
)

// AnalysisJobPayload asks a worker to parse (if needed) and analyze a stored
// structure. Stage is where processing starts.
type AnalysisJobPayload struct {
	StructureID string    `json:"structure_id"`
	Stage       string    `json:"stage"`
	Reanalyze   bool      `json:"reanalyze,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewEventEnvelope marshals payload into a fresh envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       data,
	}, nil
}

// WithCorrelationID sets the correlation id and returns e.
func (e *EventEnvelope) WithCorrelationID(id string) *EventEnvelope {
	e.CorrelationID = id
	return e
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "event payload is empty")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal payload")
	}
	return nil
}

// ToMessage encodes the envelope for topic, keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		headerEventType:     e.EventType,
		headerSource:        e.Source,
		headerSchemaVersion: e.SchemaVersion,
	}
	if e.CorrelationID != "" {
		headers[headerCorrelationID] = e.CorrelationID
	}
	msg := &ProducerMessage{
		Topic:     topic,
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}
	if key != "" {
		msg.Key = []byte(key)
	}
	return msg, nil
}

// MessageToEventEnvelope decodes a consumed message.
func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	if env.SchemaVersion != SchemaVersion {
		return nil, errors.Newf(errors.ErrCodeValidation, "unsupported schema version %q", env.SchemaVersion)
	}
	if env.CorrelationID == "" {
		env.CorrelationID = msg.Headers[headerCorrelationID]
	}
	return &env, nil
}

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the BioDockViz topics on startup when
// kafka.auto_create_topics is set.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker. kafka-go forwards CreateTopics to
// the controller.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to dial kafka")
	}
	return NewTopicManagerWithConn(conn, logger), nil
}

func NewTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: logger}
}

// CreateTopic creates cfg. An existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "NumPartitions must be > 0")
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "ReplicationFactor must be > 0")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrapf(err, errors.ErrCodeMessagingError, "create topic %s", cfg.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether the broker knows name. Lookup errors read as
// absent.
func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in topics, stopping at the first error.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) EnsureDefaultTopics(ctx context.Context, withDLQ bool) error {
	return m.EnsureTopics(ctx, DefaultTopics(withDLQ))
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

const day = int64(24 * 3600 * 1000)

// DefaultTopics lists the topics BioDockViz publishes to, plus their
// dead-letter topics when withDLQ is set.
func DefaultTopics(withDLQ bool) []TopicConfig {
	topics := []TopicConfig{
		{Name: TopicStructureUploaded, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: TopicStructureParsed, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: TopicStructureAnalyzed, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: TopicAnalysisJobs, NumPartitions: 12, ReplicationFactor: 1, RetentionMs: 3 * day},
	}
	if withDLQ {
		for _, t := range topics[:4] {
			topics = append(topics, TopicConfig{
				Name:              DeadLetterTopic(t.Name),
				NumPartitions:     3,
				ReplicationFactor: t.ReplicationFactor,
				RetentionMs:       30 * day,
			})
		}
	}
	return topics
}
