package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mehtaarjun/shopsphere-backend/pkg/db/models"
	"github.com/mehtaarjun/shopsphere-backend/pkg/enums"
)

func newSQLiteRepo(t *testing.T) *Repository {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	// One connection so every query sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(&models.Payment{}, &models.PaymentItem{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return NewRepository(gdb)
}

func seedPayment(t *testing.T, repo *Repository, status enums.PaymentStatus) *models.Payment {
	t.Helper()
	record, err := repo.Create(context.Background(), &models.Payment{
		UserID:         uuid.New(),
		OrderID:        fmt.Sprintf("ORDER_%s", uuid.NewString()[:8]),
		GatewayOrderID: "order_" + uuid.NewString()[:8],
		AmountMinor:    10000,
		Currency:       enums.CurrencyINR,
		Status:         status,
		OrderType:      enums.OrderTypeCart,
	})
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return record
}

func TestMarkFailedTransitionsCreatedRecord(t *testing.T) {
	t.Parallel()

	repo := newSQLiteRepo(t)
	record := seedPayment(t, repo, enums.PaymentStatusCreated)

	transitioned, err := repo.MarkFailed(context.Background(), record.ID, FailedUpdate{
		FailureReason: "card declined",
		FailedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if !transitioned {
		t.Fatal("expected created record to transition to failed")
	}

	stored, err := repo.FindByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.FailureReason == nil || *stored.FailureReason != "card declined" {
		t.Fatalf("unexpected failure reason: %+v", stored.FailureReason)
	}
}

func TestMarkFailedSkipsSettledAndFailedRecords(t *testing.T) {
	t.Parallel()

	repo := newSQLiteRepo(t)
	for _, status := range []enums.PaymentStatus{
		enums.PaymentStatusPaid,
		enums.PaymentStatusFailed,
		enums.PaymentStatusRefunded,
		enums.PaymentStatusCancelled,
	} {
		record := seedPayment(t, repo, status)

		transitioned, err := repo.MarkFailed(context.Background(), record.ID, FailedUpdate{
			FailureReason: "late failure event",
			FailedAt:      time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("MarkFailed(%s): %v", status, err)
		}
		if transitioned {
			t.Fatalf("%s record must not transition to failed", status)
		}

		stored, err := repo.FindByID(context.Background(), record.ID)
		if err != nil {
			t.Fatalf("FindByID(%s): %v", status, err)
		}
		if stored.Status != status {
			t.Fatalf("expected %s untouched, got %s", status, stored.Status)
		}
		if stored.FailureReason != nil {
			t.Fatalf("%s record gained a failure reason: %q", status, *stored.FailureReason)
		}
	}
}

func TestMarkPaidFirstWriterWins(t *testing.T) {
	t.Parallel()

	repo := newSQLiteRepo(t)
	record := seedPayment(t, repo, enums.PaymentStatusCreated)

	update := PaidUpdate{GatewayPaymentID: "pay_" + uuid.NewString()[:8], PaidAt: time.Now().UTC()}
	first, err := repo.MarkPaid(context.Background(), record.ID, update)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	second, err := repo.MarkPaid(context.Background(), record.ID, update)
	if err != nil {
		t.Fatalf("MarkPaid redo: %v", err)
	}
	if !first || second {
		t.Fatalf("expected exactly one transition, got first=%v second=%v", first, second)
	}
}
