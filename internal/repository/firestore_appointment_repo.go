package repository

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"

	"github.com/hitoshi/agenda/internal/model"
)

// FirestoreAppointmentRepo はFirestoreを使用した予約リポジトリ。
// 複合インデックスを不要にするため、並び替えはクエリ後にメモリ上で行う。
type FirestoreAppointmentRepo struct {
	fs *firestore.Client
}

// NewFirestoreAppointmentRepo はFirestoreAppointmentRepoを生成する。
func NewFirestoreAppointmentRepo(fs *firestore.Client) *FirestoreAppointmentRepo {
	return &FirestoreAppointmentRepo{fs: fs}
}

func (r *FirestoreAppointmentRepo) appointments(ownerID string) *firestore.CollectionRef {
	return ownerCollection(r.fs, ownerID, model.CollectionAppointments)
}

// Create は予約ドキュメントを作成する。
func (r *FirestoreAppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	_, err := r.appointments(a.OwnerID).Doc(a.ID).Create(ctx, appointmentDoc{
		ClientID:   a.ClientID,
		ClientName: a.ClientName,
		Date:       a.Date,
		Time:       a.Time,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create appointment document: %w", err)
	}
	return nil
}

// ListByDate は指定日の予約を時刻順で返す。
func (r *FirestoreAppointmentRepo) ListByDate(ctx context.Context, ownerID, date string) ([]*model.Appointment, error) {
	list, err := r.query(ctx, ownerID, r.appointments(ownerID).Where("date", "==", date))
	if err != nil {
		return nil, err
	}
	SortByTime(list)
	return list, nil
}

// ListByClient は指定顧客の予約を日付の降順で返す。
func (r *FirestoreAppointmentRepo) ListByClient(ctx context.Context, ownerID, clientID string) ([]*model.Appointment, error) {
	list, err := r.query(ctx, ownerID, r.appointments(ownerID).Where("clientId", "==", clientID))
	if err != nil {
		return nil, err
	}
	SortByDateDesc(list)
	return list, nil
}

// ListDates は予約が存在する日付を昇順・重複なしで返す。
func (r *FirestoreAppointmentRepo) ListDates(ctx context.Context, ownerID string) ([]string, error) {
	snaps, err := r.appointments(ownerID).Select("date").Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment dates: %w", err)
	}

	seen := make(map[string]struct{}, len(snaps))
	dates := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		v, err := snap.DataAt("date")
		if err != nil {
			continue
		}
		d, ok := v.(string)
		if !ok || d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

// Delete は予約ドキュメントを削除する。存在しない場合はfalseを返す。
func (r *FirestoreAppointmentRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	_, err := r.appointments(ownerID).Doc(id).Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete appointment document: %w", err)
	}
	return true, nil
}

func (r *FirestoreAppointmentRepo) query(ctx context.Context, ownerID string, q firestore.Query) ([]*model.Appointment, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query appointment documents: %w", err)
	}

	list := make([]*model.Appointment, 0, len(snaps))
	for _, snap := range snaps {
		var d appointmentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode appointment document %s: %w", snap.Ref.ID, err)
		}
		list = append(list, d.toModel(ownerID, snap.Ref.ID))
	}
	return list, nil
}

// SortByTime は予約を時刻の昇順に並べる。同時刻は作成順。
func SortByTime(list []*model.Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Time != list[j].Time {
			return list[i].Time < list[j].Time
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// SortByDateDesc は予約を日付・時刻の降順に並べる。
func SortByDateDesc(list []*model.Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date > list[j].Date
		}
		return list[i].Time > list[j].Time
	})
}

// compile-time interface check
var _ AppointmentRepository = (*FirestoreAppointmentRepo)(nil)
