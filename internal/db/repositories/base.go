package repositories

import (
	"ibmcp/internal/db"
)

type Repositories struct {
	Orders           *OrderRepo
	AccountSnapshots *AccountSnapshotRepo
}

func New(database *db.DB) *Repositories {
	conn := database.Conn()

	return &Repositories{
		Orders:           NewOrderRepo(conn),
		AccountSnapshots: NewAccountSnapshotRepo(conn),
	}
}
