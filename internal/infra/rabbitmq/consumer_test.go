package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoff(t *testing.T) {
	c := &Consumer{baseDelay: time.Second}

	assert.Equal(t, time.Second, c.calculateBackoff(1))
	assert.Equal(t, 2*time.Second, c.calculateBackoff(2))
	assert.Equal(t, 8*time.Second, c.calculateBackoff(4))
	// Capped at one minute.
	assert.Equal(t, 60*time.Second, c.calculateBackoff(10))
}

func TestAttemptFromHeaders(t *testing.T) {
	assert.Equal(t, 1, attemptFromHeaders(amqp.Delivery{}))

	d := amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{map[string]interface{}{}, map[string]interface{}{}},
	}}
	assert.Equal(t, 2, attemptFromHeaders(d))
}

func TestRetriesExhausted(t *testing.T) {
	c := &Consumer{maxRetries: 3}
	assert.False(t, c.retriesExhausted(1))
	assert.False(t, c.retriesExhausted(2))
	assert.True(t, c.retriesExhausted(3))
	assert.True(t, c.retriesExhausted(4))

	// Zero keeps the unbounded-retry behavior.
	unbounded := &Consumer{}
	assert.False(t, unbounded.retriesExhausted(100))
}
