package models_test

import (
	"errors"
	"testing"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusNext(t *testing.T) {
	cases := []struct {
		from models.OrderStatus
		ev   models.Event
		want models.OrderStatus
	}{
		{models.StatusPlaced, models.EventProcess, models.StatusProcessing},
		{models.StatusPlaced, models.EventDispatch, models.StatusOutForDelivery},
		{models.StatusPlaced, models.EventDeliver, models.StatusDelivered},
		{models.StatusPlaced, models.EventCancel, models.StatusCancelled},
		{models.StatusProcessing, models.EventDispatch, models.StatusOutForDelivery},
		{models.StatusProcessing, models.EventCancel, models.StatusCancelled},
		{models.StatusOutForDelivery, models.EventDeliver, models.StatusDelivered},
		{models.StatusOutForDelivery, models.EventCancel, models.StatusCancelled},
	}
	for _, tc := range cases {
		got, err := tc.from.Next(tc.ev)
		require.NoError(t, err, "%s --%s-->", tc.from, tc.ev)
		assert.Equal(t, tc.want, got)
	}
}

func TestOrderStatusIllegal(t *testing.T) {
	_, err := models.StatusProcessing.Next(models.EventProcess)
	var ite *models.IllegalTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "order", ite.Machine)
	assert.Equal(t, "processing", ite.From)

	_, err = models.StatusOutForDelivery.Next(models.EventDispatch)
	assert.Error(t, err)
}

func TestCancelMessages(t *testing.T) {
	_, err := models.StatusCancelled.Next(models.EventCancel)
	assert.EqualError(t, err, "Order is already cancelled")

	_, err = models.StatusDelivered.Next(models.EventCancel)
	assert.EqualError(t, err, "Cannot cancel a delivered order")
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, models.StatusDelivered.Terminal())
	assert.True(t, models.StatusCancelled.Terminal())
	assert.False(t, models.StatusPlaced.Terminal())
	assert.False(t, models.OrderStatus("shipped").Valid())
}

func TestPaymentStatusNext(t *testing.T) {
	s, err := models.PaymentPending.Next(models.EventConfirm)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, s)

	s, err = s.Next(models.EventRefund)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, s)

	_, err = models.PaymentPending.Next(models.EventRefund)
	assert.Error(t, err)
	_, err = models.PaymentRefunded.Next(models.EventConfirm)
	assert.Error(t, err)
}

func TestEventFor(t *testing.T) {
	ev, ok := models.EventFor(models.StatusOutForDelivery)
	assert.True(t, ok)
	assert.Equal(t, models.EventDispatch, ev)

	_, ok = models.EventFor(models.StatusPlaced)
	assert.False(t, ok)
}
