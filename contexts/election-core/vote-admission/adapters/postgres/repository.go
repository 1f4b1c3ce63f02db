package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"electra/contexts/election-core/vote-admission/domain/entities"
	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
	"electra/contexts/election-core/vote-admission/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Reserve inserts the voter hash and maps a duplicate-key violation to a
// lost reservation. The primary key on voter_hash is what makes the
// test-and-set atomic across processes.
func (r *Repository) Reserve(ctx context.Context, voterHash string) (bool, error) {
	row := voterModel{
		VoterHash:  strings.TrimSpace(voterHash),
		ReservedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, r.logError("admission_repo_reserve_failed", err, "voter_hash", row.VoterHash)
	}
	return true, nil
}

func (r *Repository) Release(ctx context.Context, voterHash string) error {
	result := r.db.WithContext(ctx).
		Where("voter_hash = ?", strings.TrimSpace(voterHash)).
		Delete(&voterModel{})
	if result.Error != nil {
		return r.logError("admission_repo_release_failed", result.Error,
			"voter_hash", strings.TrimSpace(voterHash),
		)
	}
	return nil
}

func (r *Repository) Contains(ctx context.Context, voterHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voterModel{}).
		Where("voter_hash = ?", strings.TrimSpace(voterHash)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("admission_repo_contains_failed", err,
			"voter_hash", strings.TrimSpace(voterHash),
		)
	}
	return count > 0, nil
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.VoteRecord) error {
	row := voteModelFromEntity(vote)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrAlreadyVoted
		}
		return r.logError("admission_repo_save_vote_failed", create.Error,
			"vote_id", row.ID,
			"voter_hash", row.VoterHash,
		)
	}
	return nil
}

func (r *Repository) GetVoteByVoter(ctx context.Context, voterHash string) (entities.VoteRecord, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("voter_hash = ?", strings.TrimSpace(voterHash)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteRecord{}, false, nil
		}
		return entities.VoteRecord{}, false, r.logError("admission_repo_get_vote_by_voter_failed", err,
			"voter_hash", strings.TrimSpace(voterHash),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListVotes(ctx context.Context) ([]entities.VoteRecord, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("admission_repo_list_votes_failed", err)
	}
	items := make([]entities.VoteRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) Increment(ctx context.Context, candidateID entities.CandidateID) error {
	result := r.db.WithContext(ctx).
		Model(&tallyModel{}).
		Where("candidate_id = ?", string(candidateID)).
		Update("count", gorm.Expr("count + ?", 1))
	if result.Error != nil {
		return r.logError("admission_repo_tally_increment_failed", result.Error,
			"candidate_id", string(candidateID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidCandidate
	}
	return nil
}

// Snapshot reads all counters in a single statement, which Postgres executes
// against one consistent snapshot. Seq is the confirmed-vote total.
func (r *Repository) Snapshot(ctx context.Context) (entities.TallySnapshot, error) {
	var rows []tallyModel
	if err := r.db.WithContext(ctx).
		Find(&rows).Error; err != nil {
		return entities.TallySnapshot{}, r.logError("admission_repo_tally_snapshot_failed", err)
	}
	counts := make(map[entities.CandidateID]uint64, len(rows))
	var total uint64
	for _, row := range rows {
		counts[entities.CandidateID(row.CandidateID)] = row.Count
		total += row.Count
	}
	return entities.TallySnapshot{
		Seq:     total,
		Counts:  counts,
		TakenAt: time.Now().UTC(),
	}, nil
}

func (r *Repository) Reset(ctx context.Context, candidates []entities.CandidateID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&tallyModel{}).Error; err != nil {
			return r.logError("admission_repo_tally_reset_delete_failed", err)
		}
		for _, candidate := range candidates {
			row := tallyModel{
				CandidateID: string(candidate),
				Count:       0,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "candidate_id"}},
				DoNothing: true,
			}).Create(&row).Error; err != nil {
				return r.logError("admission_repo_tally_reset_seed_failed", err,
					"candidate_id", string(candidate),
				)
			}
		}
		return nil
	})
}

func (r *Repository) GetElection(ctx context.Context) (entities.Election, bool, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, false, nil
		}
		return entities.Election{}, false, r.logError("admission_repo_get_election_failed", err)
	}
	election, convErr := row.toEntity()
	if convErr != nil {
		return entities.Election{}, false, r.logError("admission_repo_decode_election_failed", convErr,
			"election_id", row.ID,
		)
	}
	return election, true, nil
}

func (r *Repository) SaveElection(ctx context.Context, election entities.Election) error {
	row, err := electionModelFromEntity(election)
	if err != nil {
		return r.logError("admission_repo_encode_election_failed", err,
			"election_id", strings.TrimSpace(election.ElectionID),
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":       row.Name,
			"candidates": row.Candidates,
			"state":      row.State,
			"opened_at":  row.OpenedAt,
			"closed_at":  row.ClosedAt,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("admission_repo_save_election_failed", create.Error,
			"election_id", row.ID,
		)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("admission_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("admission_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("admission_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("admission_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	// Zero matched rows means the record is gone or already acknowledged;
	// marking is idempotent so the relay can safely reprocess a batch.
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-core/vote-admission",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("admission repository operation failed", fields...)
	return err
}

type electionModel struct {
	ID         string          `gorm:"column:id;primaryKey"`
	Name       string          `gorm:"column:name"`
	Candidates json.RawMessage `gorm:"column:candidates"`
	State      string          `gorm:"column:state"`
	OpenedAt   *time.Time      `gorm:"column:opened_at"`
	ClosedAt   *time.Time      `gorm:"column:closed_at"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) (electionModel, error) {
	candidates, err := json.Marshal(election.Candidates)
	if err != nil {
		return electionModel{}, err
	}
	row := electionModel{
		ID:         strings.TrimSpace(election.ElectionID),
		Name:       strings.TrimSpace(election.Name),
		Candidates: candidates,
		State:      string(election.State),
		OpenedAt:   normalizeOptionalTime(election.OpenedAt),
		ClosedAt:   normalizeOptionalTime(election.ClosedAt),
		CreatedAt:  election.CreatedAt.UTC(),
		UpdatedAt:  election.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m electionModel) toEntity() (entities.Election, error) {
	var candidates []entities.CandidateID
	if len(m.Candidates) > 0 {
		if err := json.Unmarshal(m.Candidates, &candidates); err != nil {
			return entities.Election{}, err
		}
	}
	return entities.Election{
		ElectionID: m.ID,
		Name:       m.Name,
		Candidates: candidates,
		State:      entities.ElectionState(m.State),
		OpenedAt:   normalizeOptionalTime(m.OpenedAt),
		ClosedAt:   normalizeOptionalTime(m.ClosedAt),
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}, nil
}

type voterModel struct {
	VoterHash  string    `gorm:"column:voter_hash;primaryKey"`
	ReservedAt time.Time `gorm:"column:reserved_at"`
}

func (voterModel) TableName() string {
	return "election_voters"
}

type voteModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	VoterHash   string    `gorm:"column:voter_hash"`
	CandidateID string    `gorm:"column:candidate_id"`
	Signature   string    `gorm:"column:signature"`
	SubmittedAt time.Time `gorm:"column:submitted_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.VoteRecord) voteModel {
	row := voteModel{
		ID:          strings.TrimSpace(vote.VoteID),
		VoterHash:   strings.TrimSpace(vote.VoterHash),
		CandidateID: string(vote.CandidateID),
		Signature:   strings.TrimSpace(vote.Signature),
		SubmittedAt: vote.SubmittedAt.UTC(),
	}
	if row.SubmittedAt.IsZero() {
		row.SubmittedAt = time.Now().UTC()
	}
	return row
}

func (m voteModel) toEntity() entities.VoteRecord {
	return entities.VoteRecord{
		VoteID:      m.ID,
		VoterHash:   m.VoterHash,
		CandidateID: entities.CandidateID(m.CandidateID),
		Signature:   m.Signature,
		SubmittedAt: m.SubmittedAt.UTC(),
	}
}

type tallyModel struct {
	CandidateID string `gorm:"column:candidate_id;primaryKey"`
	Count       uint64 `gorm:"column:count"`
}

func (tallyModel) TableName() string {
	return "tally_counters"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "election_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.VoterRegistry = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.TallyStore = (*Repository)(nil)
var _ ports.ElectionStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
