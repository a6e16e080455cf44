package domain

import (
	"fmt"
	"time"
)

type Alert struct {
	ID        string
	ItemID    int64
	Message   string
	CreatedAt time.Time
}

// Notification is a rendered message waiting for delivery through a
// notification sink.
type Notification struct {
	ID        string
	Recipient string
	Subject   string
	Body      string
}

// Receipt acknowledges that a sink accepted a notification.
type Receipt struct {
	MessageID   string
	DeliveredAt time.Time
}

func LowStockAlertMessage(name string, stock int) string {
	return fmt.Sprintf("Item %q is at a critical stock level (%d units)", name, stock)
}

func LowStockSubject(name string) string {
	return fmt.Sprintf("Low stock: %s", name)
}

func LowStockBody(name string, stock, minimum int) string {
	return fmt.Sprintf(
		"Item %q has reached a critical stock level.\nUnits remaining: %d\nMinimum stock: %d\n",
		name, stock, minimum,
	)
}
