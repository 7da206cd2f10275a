// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package eventsource

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/models"
)

// Mongo reads events from a MongoDB database.
type Mongo struct {
	client     *mongo.Client
	attendance *mongo.Collection
	overtime   *mongo.Collection
	timeout    time.Duration
}

// Dial connects to the configured database and verifies it with a ping.
func Dial(ctx context.Context, cfg *config.MongoConfig) (*Mongo, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	logging.Info().Str("database", cfg.Database).Msg("Connected to event store")
	return &Mongo{
		client:     client,
		attendance: db.Collection(cfg.AttendanceCollection),
		overtime:   db.Collection(cfg.OvertimeCollection),
		timeout:    timeout,
	}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type attLogDoc struct {
	ID        bson.RawValue `bson:"_id"`
	FingerID  bson.RawValue `bson:"attFingerId"`
	Timestamp time.Time     `bson:"timestamp"`
	MachineNo int           `bson:"machineNo"`
}

func (d attLogDoc) event() models.AttendanceEvent {
	return models.AttendanceEvent{
		SequenceID: sequenceOf(d.ID),
		FingerID:   scalarString(d.FingerID),
		Timestamp:  d.Timestamp.UTC(),
		MachineNo:  d.MachineNo,
	}
}

// StreamAttendance implements Source.
func (m *Mongo) StreamAttendance(ctx context.Context, q AttendanceQuery, fn func(models.AttendanceEvent) error) error {
	start, end := q.Bounds()
	filter := bson.D{{Key: "timestamp", Value: bson.D{
		{Key: "$gte", Value: start},
		{Key: "$lte", Value: end},
	}}}
	if q.OnlyMachineZero {
		filter = append(filter, bson.E{Key: "machineNo", Value: 0})
	}
	opts := options.Find().
		SetProjection(bson.D{{Key: "attFingerId", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "machineNo", Value: 1}}).
		SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cur, err := m.attendance.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("query attendance: %w", err)
	}
	defer cur.Close(context.WithoutCancel(ctx))

	for cur.Next(ctx) {
		var doc attLogDoc
		if err := cur.Decode(&doc); err != nil {
			logging.Warn().Err(err).Msg("Skipping undecodable attendance document")
			continue
		}
		if err := fn(doc.event()); err != nil {
			return err
		}
	}
	return cur.Err()
}

type otDoc struct {
	ID          bson.RawValue `bson:"_id"`
	RequestNo   bson.RawValue `bson:"requestNo"`
	RequestDate time.Time     `bson:"requestDate"`
	EmpID       bson.RawValue `bson:"empId"`
	OTDate      time.Time     `bson:"otDate"`
	Begin       string        `bson:"otTimeBegin"`
	End         string        `bson:"otTimeEnd"`
}

func (d otDoc) event() models.OTEvent {
	return models.OTEvent{
		SequenceID:  sequenceOf(d.ID),
		RequestNo:   scalarString(d.RequestNo),
		RequestDate: d.RequestDate.UTC(),
		EmployeeID:  scalarString(d.EmpID),
		Date:        d.OTDate.UTC(),
		BeginTime:   strings.TrimSpace(d.Begin),
		EndTime:     strings.TrimSpace(d.End),
	}
}

// OvertimeEvents implements Source.
func (m *Mongo) OvertimeEvents(ctx context.Context, q OvertimeQuery) ([]models.OTEvent, error) {
	y, mo, d := q.StartDate.Date()
	filter := bson.D{{Key: "otDate", Value: bson.D{{Key: "$gte", Value: time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)}}}}
	if q.After != "" {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$gt", Value: cursorValue(q.After)}}})
	}
	cur, err := m.overtime.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query overtime: %w", err)
	}
	defer cur.Close(context.WithoutCancel(ctx))

	var events []models.OTEvent
	for cur.Next(ctx) {
		var doc otDoc
		if err := cur.Decode(&doc); err != nil {
			logging.Warn().Err(err).Msg("Skipping undecodable overtime document")
			continue
		}
		events = append(events, doc.event())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("read overtime: %w", err)
	}
	return events, nil
}

// sequenceOf renders an _id as a SequenceID. Integer ids compare by length
// then lexically, which matches numeric order for non-negative values.
// ObjectIDs have a fixed hex width and sort by creation time.
func sequenceOf(v bson.RawValue) models.SequenceID {
	if v.Type == bson.TypeObjectID {
		return models.SequenceID(v.ObjectID().Hex())
	}
	return models.SequenceID(scalarString(v))
}

// cursorValue converts a stored cursor back into the _id's BSON type.
func cursorValue(id models.SequenceID) any {
	s := string(id)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return s
}

// scalarString renders string and numeric fields the same way.
func scalarString(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeString:
		return strings.TrimSpace(v.StringValue())
	case bson.TypeInt32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case bson.TypeInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case bson.TypeDouble:
		f := v.Double()
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	default:
		return ""
	}
}
