package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

func flat(code, value string) coupon.Coupon {
	return coupon.Coupon{Code: code, Discount: coupon.Flat{Value: decimal.RequireFromString(value)}}
}

func TestMergeDefinitions(t *testing.T) {
	perFile := [][]coupon.Coupon{
		{flat("A", "1"), flat("B", "1")},
		{flat("C", "1"), flat("A", "2")},
		{flat("B", "3")},
	}

	got, dups := mergeDefinitions(perFile)
	assert.Equal(t, 2, dups)
	require.Len(t, got, 3)

	assert.Equal(t, "A", got[0].Code)
	assert.Equal(t, "2", coupon.DiscountValue(got[0].Discount).String())
	assert.Equal(t, "B", got[1].Code)
	assert.Equal(t, "3", coupon.DiscountValue(got[1].Discount).String())
	assert.Equal(t, "C", got[2].Code)
}

func TestRepeatedCodes(t *testing.T) {
	perFile := [][]coupon.Coupon{
		{flat("A", "1"), flat("B", "1")},
		{flat("C", "1"), flat("A", "2")},
		{flat("B", "3"), flat("A", "4")},
	}

	suspects := repeatedCodes(perFile)
	assert.Contains(t, suspects, "A")
	assert.Contains(t, suspects, "B")
	assert.NotContains(t, suspects, "C", "codes seen once are not indexed")

	got, dups := mergeDefinitions(perFile)
	assert.Equal(t, 3, dups)
	require.Len(t, got, 3)
	assert.Equal(t, "4", coupon.DiscountValue(got[0].Discount).String())
}

type recordingUpserter struct {
	batches [][]coupon.Coupon
}

func (r *recordingUpserter) UpsertBatch(_ context.Context, coupons []coupon.Coupon) error {
	r.batches = append(r.batches, coupons)
	return nil
}

func TestWriteCoupons_Batches(t *testing.T) {
	coupons := make([]coupon.Coupon, batchSize+1)
	repo := &recordingUpserter{}

	require.NoError(t, writeCoupons(context.Background(), repo, coupons))
	require.Len(t, repo.batches, 2)
	assert.Len(t, repo.batches[0], batchSize)
	assert.Len(t, repo.batches[1], 1)
}
