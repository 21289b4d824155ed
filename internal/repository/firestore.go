package repository

import (
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitoshi/agenda/internal/model"
)

// Firestoreのコレクション構成:
//
//	users/{uid}                    プロフィール
//	users/{uid}/clients/{id}       顧客
//	users/{uid}/appointments/{id}  予約
const usersCollection = "users"

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

func userDoc(fs *firestore.Client, uid string) *firestore.DocumentRef {
	return fs.Collection(usersCollection).Doc(uid)
}

func ownerCollection(fs *firestore.Client, ownerID, name string) *firestore.CollectionRef {
	return userDoc(fs, ownerID).Collection(name)
}

type profileDoc struct {
	UID         string    `firestore:"uid"`
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	PhotoURL    string    `firestore:"photoURL"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type clientDoc struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Phone     string    `firestore:"phone"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d clientDoc) toModel(ownerID, id string) *model.Client {
	return &model.Client{
		ID:        id,
		OwnerID:   ownerID,
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type appointmentDoc struct {
	ClientID   string    `firestore:"clientId"`
	ClientName string    `firestore:"clientName"`
	Date       string    `firestore:"date"`
	Time       string    `firestore:"time"`
	Notes      string    `firestore:"notes"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func (d appointmentDoc) toModel(ownerID, id string) *model.Appointment {
	return &model.Appointment{
		ID:         id,
		OwnerID:    ownerID,
		ClientID:   d.ClientID,
		ClientName: d.ClientName,
		Date:       d.Date,
		Time:       d.Time,
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt,
	}
}
