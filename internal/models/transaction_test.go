package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TransactionStatus
		to   TransactionStatus
		want bool
	}{
		{"created to authorized", TxCreated, TxAuthorized, true},
		{"created to captured", TxCreated, TxCaptured, true},
		{"authorized to captured", TxAuthorized, TxCaptured, true},
		{"captured to refunded", TxCaptured, TxRefunded, true},
		{"created to failed", TxCreated, TxFailed, true},
		{"authorized to failed", TxAuthorized, TxFailed, true},
		{"captured to failed", TxCaptured, TxFailed, true},

		{"same status is not a transition", TxCaptured, TxCaptured, false},
		{"captured back to authorized", TxCaptured, TxAuthorized, false},
		{"captured back to created", TxCaptured, TxCreated, false},
		{"refunded back to captured", TxRefunded, TxCaptured, false},
		{"refund requires capture", TxAuthorized, TxRefunded, false},
		{"refund straight from created", TxCreated, TxRefunded, false},
		{"failed is terminal", TxFailed, TxCaptured, false},
		{"failed cannot refund", TxFailed, TxRefunded, false},
		{"refunded cannot fail", TxRefunded, TxFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestMaterializable(t *testing.T) {
	t.Run("Given a captured unprocessed transaction When checked Then it is materializable", func(t *testing.T) {
		tx := &Transaction{Status: TxCaptured}
		if !tx.Materializable(false) {
			t.Error("expected captured transaction to be materializable")
		}
	})

	t.Run("Given a processed transaction When checked Then it is not materializable", func(t *testing.T) {
		tx := &Transaction{Status: TxCaptured, Processed: true}
		if tx.Materializable(false) {
			t.Error("processed transaction must never materialize again")
		}
	})

	t.Run("Given an authorized transaction When acceptAuthorized is off Then it waits", func(t *testing.T) {
		tx := &Transaction{Status: TxAuthorized}
		if tx.Materializable(false) {
			t.Error("authorized should not materialize by default")
		}
		if !tx.Materializable(true) {
			t.Error("authorized should materialize when accepted")
		}
	})

	t.Run("Given a failed transaction When checked Then it never materializes", func(t *testing.T) {
		tx := &Transaction{Status: TxFailed}
		if tx.Materializable(true) {
			t.Error("failed transaction must not materialize")
		}
	})
}
