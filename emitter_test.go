package authsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_DeliversInRegistrationOrder(t *testing.T) {
	var e Emitter
	var calls []string

	e.OnSessionChange(func(event ChangeEvent, session *Session) {
		calls = append(calls, "first:"+event)
	})
	e.OnSessionChange(func(event ChangeEvent, session *Session) {
		calls = append(calls, "second:"+event)
	})

	e.Emit(EventSignedIn, sessionFor("u1"))

	assert.Equal(t, []string{"first:SIGNED_IN", "second:SIGNED_IN"}, calls)
}

func TestEmitter_Unsubscribe(t *testing.T) {
	var e Emitter
	var count int

	sub := e.OnSessionChange(func(ChangeEvent, *Session) {
		count++
	})
	assert.Equal(t, 1, e.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, e.Len())

	e.Emit(EventSignedOut, nil)
	assert.Equal(t, 0, count)
}

func TestEmitter_HandlerMayUnsubscribeDuringEmit(t *testing.T) {
	var e Emitter
	var sub Subscription
	var count int

	sub = e.OnSessionChange(func(ChangeEvent, *Session) {
		count++
		sub.Unsubscribe()
	})

	e.Emit(EventSignedIn, nil)
	e.Emit(EventSignedIn, nil)

	assert.Equal(t, 1, count)
}

func TestEmitter_NilHandler(t *testing.T) {
	var e Emitter

	sub := e.OnSessionChange(nil)
	assert.Equal(t, 0, e.Len())
	assert.NotPanics(t, func() {
		e.Emit(EventSignedIn, nil)
		sub.Unsubscribe()
	})
}
