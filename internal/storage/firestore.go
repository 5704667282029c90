package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

const (
	channelStateCollection = "channel_states"
	channelAdminCollection = "channel_admin"
	dispatchRecCollection  = "dispatch_records"
)

// Firestore is the managed-database Store for deployments on Google Cloud.
// CommitDispatch uses a Firestore transaction so the channel state document
// and the dispatch record document update atomically.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

type firestoreChannelState struct {
	ChannelID          string    `firestore:"channelId"`
	LastDispatchAt     time.Time `firestore:"lastDispatchAt"`
	DispatchCountToday int       `firestore:"dispatchCountToday"`
	DailyResetAt       time.Time `firestore:"dailyResetAt"`
}

type firestoreAdminFlag struct {
	Disabled bool   `firestore:"disabled"`
	Reason   string `firestore:"reason,omitempty"`
}

type firestoreRecord struct {
	DealKey      string    `firestore:"dealKey"`
	ChannelID    string    `firestore:"channelId"`
	DispatchedAt time.Time `firestore:"dispatchedAt"`
}

func (f *Firestore) Load(ctx context.Context) (*State, error) {
	state := NewState()

	iter := f.client.Collection(channelStateCollection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate channel states: %w", err)
		}
		var cs firestoreChannelState
		if err := doc.DataTo(&cs); err != nil {
			return nil, fmt.Errorf("unmarshal channel state %s: %w", doc.Ref.ID, err)
		}
		state.Channels[cs.ChannelID] = models.ChannelState{
			ChannelID:          cs.ChannelID,
			LastDispatchAt:     cs.LastDispatchAt,
			DispatchCountToday: cs.DispatchCountToday,
			DailyResetAt:       cs.DailyResetAt,
		}
	}

	adminIter := f.client.Collection(channelAdminCollection).Documents(ctx)
	defer adminIter.Stop()
	for {
		doc, err := adminIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate channel admin flags: %w", err)
		}
		var flag firestoreAdminFlag
		if err := doc.DataTo(&flag); err != nil {
			return nil, fmt.Errorf("unmarshal admin flag %s: %w", doc.Ref.ID, err)
		}
		state.Disabled[doc.Ref.ID] = DisableFlag{Disabled: flag.Disabled, Reason: flag.Reason}
	}

	recIter := f.client.Collection(dispatchRecCollection).Documents(ctx)
	defer recIter.Stop()
	for {
		doc, err := recIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate dispatch records: %w", err)
		}
		var rec firestoreRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("unmarshal dispatch record %s: %w", doc.Ref.ID, err)
		}
		state.Records = append(state.Records, models.DistributionRecord{
			DealKey:      rec.DealKey,
			ChannelID:    rec.ChannelID,
			DispatchedAt: rec.DispatchedAt,
		})
	}

	return state, nil
}

func (f *Firestore) CommitDispatch(ctx context.Context, state models.ChannelState, record models.DistributionRecord) error {
	stateRef := f.client.Collection(channelStateCollection).Doc(state.ChannelID)
	recordRef := f.client.Collection(dispatchRecCollection).Doc(record.DealKey)

	err := f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(stateRef, firestoreChannelState{
			ChannelID:          state.ChannelID,
			LastDispatchAt:     state.LastDispatchAt,
			DispatchCountToday: state.DispatchCountToday,
			DailyResetAt:       state.DailyResetAt,
		}); err != nil {
			return err
		}
		return tx.Set(recordRef, firestoreRecord{
			DealKey:      record.DealKey,
			ChannelID:    record.ChannelID,
			DispatchedAt: record.DispatchedAt,
		})
	})
	if err != nil {
		// Aborted means transaction retries were exhausted under contention.
		if status.Code(err) == codes.Aborted {
			return fmt.Errorf("commit dispatch for %s: transaction contention: %w", state.ChannelID, err)
		}
		return fmt.Errorf("commit dispatch for %s: %w", state.ChannelID, err)
	}
	return nil
}

func (f *Firestore) SetChannelDisabled(ctx context.Context, channelID string, disabled bool, reason string) error {
	ref := f.client.Collection(channelAdminCollection).Doc(channelID)
	if _, err := ref.Set(ctx, firestoreAdminFlag{Disabled: disabled, Reason: reason}); err != nil {
		return fmt.Errorf("set channel admin flag %s: %w", channelID, err)
	}
	return nil
}

func (f *Firestore) PruneRecords(ctx context.Context, before time.Time) (int, error) {
	iter := f.client.Collection(dispatchRecCollection).
		Where("dispatchedAt", "<", before).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := f.client.BulkWriter(ctx)
	defer bulkWriter.End()

	pruned := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return pruned, fmt.Errorf("iterate records for pruning: %w", err)
		}
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			return pruned, fmt.Errorf("queue record delete %s: %w", doc.Ref.ID, err)
		}
		pruned++
	}
	if pruned > 0 {
		bulkWriter.Flush()
	}
	return pruned, nil
}
