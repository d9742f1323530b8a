package repository

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// Namespaces used by every driver.
const (
	NamespaceStaff       = "staff"
	NamespaceQueue       = "queue"
	NamespaceAssignments = "assignments"
	NamespaceSessions    = "sessions"
	NamespaceTranscripts = "transcripts"
)

// Stores bundles one Store per entity set.
type Stores struct {
	Staff       Store[domain.StaffMember]
	Queue       Store[domain.QueueEntry]
	Assignments Store[domain.Assignment]
	Sessions    Store[domain.Session]
	Transcripts Store[domain.Transcript]
}

// NewMemoryStores returns process-local stores.
func NewMemoryStores() Stores {
	return Stores{
		Staff:       NewMemoryStore[domain.StaffMember](),
		Queue:       NewMemoryStore[domain.QueueEntry](),
		Assignments: NewMemoryStore[domain.Assignment](),
		Sessions:    NewMemoryStore[domain.Session](),
		Transcripts: NewMemoryStore[domain.Transcript](),
	}
}

// Backends are the opened connections a driver may need. Unused ones stay nil.
type Backends struct {
	Postgres    *pgxpool.Pool
	Redis       *redis.Client
	Dynamo      DynamoAPI
	DynamoTable string
}

// OpenStores builds the stores for the configured driver.
func OpenStores(cfg config.StoreConfig, b Backends) (Stores, error) {
	switch cfg.Driver {
	case config.StoreDriverMemory, "":
		return NewMemoryStores(), nil
	case config.StoreDriverRedis:
		if b.Redis == nil {
			return Stores{}, fmt.Errorf("store driver %q requires a redis client", cfg.Driver)
		}
		return Stores{
			Staff:       NewRedisStore[domain.StaffMember](b.Redis, cfg.KeyPrefix, NamespaceStaff),
			Queue:       NewRedisStore[domain.QueueEntry](b.Redis, cfg.KeyPrefix, NamespaceQueue),
			Assignments: NewRedisStore[domain.Assignment](b.Redis, cfg.KeyPrefix, NamespaceAssignments),
			Sessions:    NewRedisStore[domain.Session](b.Redis, cfg.KeyPrefix, NamespaceSessions),
			Transcripts: NewRedisStore[domain.Transcript](b.Redis, cfg.KeyPrefix, NamespaceTranscripts),
		}, nil
	case config.StoreDriverPostgres:
		if b.Postgres == nil {
			return Stores{}, fmt.Errorf("store driver %q requires POSTGRES_DSN", cfg.Driver)
		}
		return Stores{
			Staff:       NewPostgresStore[domain.StaffMember](b.Postgres, NamespaceStaff),
			Queue:       NewPostgresStore[domain.QueueEntry](b.Postgres, NamespaceQueue),
			Assignments: NewPostgresStore[domain.Assignment](b.Postgres, NamespaceAssignments),
			Sessions:    NewPostgresStore[domain.Session](b.Postgres, NamespaceSessions),
			Transcripts: NewPostgresStore[domain.Transcript](b.Postgres, NamespaceTranscripts),
		}, nil
	case config.StoreDriverDynamo:
		if b.Dynamo == nil || b.DynamoTable == "" {
			return Stores{}, fmt.Errorf("store driver %q requires a dynamodb client and table", cfg.Driver)
		}
		return Stores{
			Staff:       NewDynamoStore[domain.StaffMember](b.Dynamo, b.DynamoTable, NamespaceStaff),
			Queue:       NewDynamoStore[domain.QueueEntry](b.Dynamo, b.DynamoTable, NamespaceQueue),
			Assignments: NewDynamoStore[domain.Assignment](b.Dynamo, b.DynamoTable, NamespaceAssignments),
			Sessions:    NewDynamoStore[domain.Session](b.Dynamo, b.DynamoTable, NamespaceSessions),
			Transcripts: NewDynamoStore[domain.Transcript](b.Dynamo, b.DynamoTable, NamespaceTranscripts),
		}, nil
	default:
		return Stores{}, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
