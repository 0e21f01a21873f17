package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegis/core"
	"aegis/util/goroutine"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDB holds the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDB creates a new MongoDB connection
func NewMongoDB(uri, dbName string, maxPoolSize uint64, logger *zap.SugaredLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetMaxPoolSize(maxPoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB successfully")

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// HealthCheck performs a health check on the MongoDB connection
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// IncidentArchiver receives closed incidents for long-term retention.
type IncidentArchiver interface {
	Archive(incident *core.Incident)
	ListArchived(ctx context.Context, limit int64) ([]core.Incident, error)
}

// IncidentArchive copies closed incidents into MongoDB for long-term
// retention, off the hot path. Archive is fire-and-forget: the worker
// drains a buffered channel and incidents are dropped with a warning if
// the buffer is full, so a slow archive never blocks incident closure.
type IncidentArchive struct {
	coll       *mongo.Collection
	incidentCh chan *core.Incident
	timeout    time.Duration
	wg         sync.WaitGroup
	logger     *zap.SugaredLogger
}

// NewIncidentArchive creates an incident archive backed by the
// "archived_incidents" collection.
func NewIncidentArchive(mongoDB *MongoDB, bufferSize int, timeout time.Duration, logger *zap.SugaredLogger) *IncidentArchive {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IncidentArchive{
		coll:       mongoDB.Database.Collection("archived_incidents"),
		incidentCh: make(chan *core.Incident, bufferSize),
		timeout:    timeout,
		logger:     logger,
	}
}

// Start starts the archive worker.
func (ia *IncidentArchive) Start() {
	ia.wg.Add(1)
	go ia.worker()
}

// Stop closes the intake channel and waits for the worker to drain it.
func (ia *IncidentArchive) Stop() {
	close(ia.incidentCh)
	ia.wg.Wait()
}

// Archive queues an incident for archival. Never blocks.
func (ia *IncidentArchive) Archive(incident *core.Incident) {
	select {
	case ia.incidentCh <- incident:
	default:
		ia.logger.Warnf("Incident archive buffer full, dropping incident %s", incident.ID)
	}
}

func (ia *IncidentArchive) worker() {
	defer ia.wg.Done()
	defer goroutine.Recover("incident-archive", ia.logger)
	for incident := range ia.incidentCh {
		ctx, cancel := context.WithTimeout(context.Background(), ia.timeout)
		_, err := ia.coll.InsertOne(ctx, incident)
		cancel()
		if err != nil {
			ia.logger.Errorf("Failed to archive incident %s: %v", incident.ID, err)
			continue
		}
		ia.logger.Debugf("Archived incident %s", incident.ID)
	}
}

// ListArchived retrieves archived incidents, newest first.
func (ia *IncidentArchive) ListArchived(ctx context.Context, limit int64) ([]core.Incident, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	opts := options.Find().SetSort(bson.D{{Key: "detectedat", Value: -1}}).SetLimit(limit)
	cursor, err := ia.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived incidents: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var incidents []core.Incident
	if err := cursor.All(ctx, &incidents); err != nil {
		return nil, fmt.Errorf("failed to decode archived incidents: %w", err)
	}
	return incidents, nil
}
