package models

import (
	"errors"
	"strings"
	"testing"
)

func TestApprovalRequestValidate(t *testing.T) {
	valid := ApprovalRequest{RequestID: "r1", TrackID: "TX1", Flow: FlowCrypto, Message: "alert"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*ApprovalRequest)
		wantErr error
	}{
		{"empty track", func(r *ApprovalRequest) { r.TrackID = "" }, ErrEmptyTrackID},
		{"bad flow", func(r *ApprovalRequest) { r.Flow = "wire" }, ErrInvalidFlow},
		{"empty message", func(r *ApprovalRequest) { r.Message = "" }, ErrEmptyMessage},
		{"oversized message", func(r *ApprovalRequest) { r.Message = strings.Repeat("x", MaxAlertMessageLength+1) }, ErrMessageTooLong},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := valid
			c.mutate(&r)
			if err := r.Validate(); !errors.Is(err, c.wantErr) {
				t.Errorf("got %v, want %v", err, c.wantErr)
			}
		})
	}
}

func TestInvoiceStatus(t *testing.T) {
	for _, s := range []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusRejected, InvoiceStatusPending, InvoiceStatusValidating} {
		if !IsValidInvoiceStatus(s) {
			t.Errorf("%s should be valid", s)
		}
	}
	if IsValidInvoiceStatus("approved") {
		t.Error("unknown status accepted")
	}
	if !InvoiceStatusRejected.RequiresReason() {
		t.Error("rejected should require a reason")
	}
	if InvoiceStatusPaid.RequiresReason() {
		t.Error("paid should not require a reason")
	}
}

func TestPendingActionValidate(t *testing.T) {
	draft := &DecisionDraft{RequestID: "r1", TrackID: "TX1", Flow: FlowCrypto, Status: InvoiceStatusPaid}
	notif := &NotificationDraft{Step: NotifStepAwaitTitle}

	cases := []struct {
		name   string
		action PendingAction
		ok     bool
	}{
		{"decision kind with decision payload", PendingAction{Kind: PendingCollectReference, Decision: draft}, true},
		{"compose kind with notification payload", PendingAction{Kind: PendingComposeNotification, Notification: notif}, true},
		{"missing kind", PendingAction{Decision: draft}, false},
		{"decision kind without payload", PendingAction{Kind: PendingConfirming}, false},
		{"decision kind with both payloads", PendingAction{Kind: PendingConfirming, Decision: draft, Notification: notif}, false},
		{"compose kind with decision payload", PendingAction{Kind: PendingComposeNotification, Decision: draft}, false},
		{"unknown kind", PendingAction{Kind: "other", Decision: draft}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.action.Validate()
			if c.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !c.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAlreadyDecidedError(t *testing.T) {
	err := &AlreadyDecidedError{Decision: Decision{RequestID: "r1", Status: InvoiceStatusPaid, DecidedBy: "+98912"}}
	var target *AlreadyDecidedError
	if !errors.As(error(err), &target) {
		t.Fatal("errors.As failed")
	}
	if !strings.Contains(err.Error(), "r1") || !strings.Contains(err.Error(), "paid") {
		t.Errorf("error string missing details: %s", err.Error())
	}
}

func TestCountWords(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"a b  c\td\ne", 5},
	}
	for _, c := range cases {
		if got := CountWords(c.in); got != c.want {
			t.Errorf("CountWords(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
