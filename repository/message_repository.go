package repository

import (
	"sort"
	"time"

	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, msg *models.Message) error
	ListByAppointment(dbc dbctx.Context, appointmentID uuid.UUID) ([]*models.Message, error)
	ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*models.Message, error)
	// DeleteByAppointment removes the appointment's chat and returns the ids
	// of the removed messages.
	DeleteByAppointment(dbc dbctx.Context, appointmentID uuid.UUID) ([]uuid.UUID, error)
	LastSentByAppointment(dbc dbctx.Context, appointmentIDs []uuid.UUID) (map[uuid.UUID]time.Time, error)
	LastSentByThread(dbc dbctx.Context, threadIDs []uuid.UUID) (map[uuid.UUID]time.Time, error)

	FindThread(dbc dbctx.Context, a, b uuid.UUID) (*models.DirectMessage, error)
	CreateThread(dbc dbctx.Context, thread *models.DirectMessage) error
	ListThreadsForUser(dbc dbctx.Context, userID uuid.UUID) ([]*models.DirectMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, msg *models.Message) error {
	return dbc.DB(r.db).Create(msg).Error
}

func (r *messageRepo) ListByAppointment(dbc dbctx.Context, appointmentID uuid.UUID) ([]*models.Message, error) {
	return r.list(dbc, "appointment_id = ?", appointmentID)
}

func (r *messageRepo) ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*models.Message, error) {
	return r.list(dbc, "direct_message_id = ?", threadID)
}

func (r *messageRepo) list(dbc dbctx.Context, where string, parentID uuid.UUID) ([]*models.Message, error) {
	var out []*models.Message
	if err := dbc.DB(r.db).
		Where(where, parentID).
		Order("sent_time desc").
		Order("id asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	SortMessagesDesc(out)
	return out, nil
}

func (r *messageRepo) DeleteByAppointment(dbc dbctx.Context, appointmentID uuid.UUID) ([]uuid.UUID, error) {
	txx := dbc.DB(r.db)
	var ids []uuid.UUID
	if err := txx.Model(&models.Message{}).
		Where("appointment_id = ?", appointmentID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := txx.Where("id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *messageRepo) LastSentByAppointment(dbc dbctx.Context, appointmentIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	return r.lastSent(dbc, "appointment_id", appointmentIDs)
}

func (r *messageRepo) LastSentByThread(dbc dbctx.Context, threadIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	return r.lastSent(dbc, "direct_message_id", threadIDs)
}

// lastSent returns the newest sent_time per parent, one row per parent that
// has messages. sent_time is selected as a column rather than through an
// aggregate so drivers keep its time type.
func (r *messageRepo) lastSent(dbc dbctx.Context, parentCol string, parentIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	out := make(map[uuid.UUID]time.Time, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	txx := dbc.DB(r.db)
	newest := txx.Model(&models.Message{}).
		Select("MAX(sent_time)").
		Where(parentCol + " = m." + parentCol)

	var rows []struct {
		ParentID uuid.UUID
		SentTime time.Time
	}
	if err := txx.Table("messages AS m").
		Select("m." + parentCol + " AS parent_id, m.sent_time AS sent_time").
		Where("m."+parentCol+" IN ?", parentIDs).
		Where("m.sent_time = (?)", newest).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ParentID] = row.SentTime
	}
	return out, nil
}

func (r *messageRepo) FindThread(dbc dbctx.Context, a, b uuid.UUID) (*models.DirectMessage, error) {
	var thread models.DirectMessage
	if err := dbc.DB(r.db).First(&thread, "pair_key = ?", models.PairKey(a, b)).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *messageRepo) CreateThread(dbc dbctx.Context, thread *models.DirectMessage) error {
	thread.PairKey = models.PairKey(thread.UserAID, thread.UserBID)
	return dbc.DB(r.db).Create(thread).Error
}

func (r *messageRepo) ListThreadsForUser(dbc dbctx.Context, userID uuid.UUID) ([]*models.DirectMessage, error) {
	var out []*models.DirectMessage
	if err := dbc.DB(r.db).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SortMessagesDesc orders by sent time, newest first, breaking ties by id.
func SortMessagesDesc(msgs []*models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].SentTime.Equal(msgs[j].SentTime) {
			return msgs[i].SentTime.After(msgs[j].SentTime)
		}
		return msgs[i].ID.String() < msgs[j].ID.String()
	})
}
