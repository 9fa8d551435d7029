package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type slotted struct {
	slot string
	val  int
}

func bySlot(s slotted) string { return s.slot }

func TestPlanSet(t *testing.T) {
	existing := []slotted{{"A", 1}, {"B", 1}, {"C", 1}}
	incoming := []slotted{{"B", 2}, {"C", 2}, {"D", 2}}

	plan := planSet(existing, incoming, bySlot)
	assert.Equal(t, []string{"A"}, plan.Delete)
	assert.Equal(t, incoming, plan.Upsert)
	assert.Equal(t, 1, plan.Created)
	assert.Equal(t, 2, plan.Updated)
}

func TestPlanSetLastEntryWins(t *testing.T) {
	incoming := []slotted{{"A", 1}, {"B", 1}, {"A", 3}}

	plan := planSet(nil, incoming, bySlot)
	assert.Equal(t, []slotted{{"A", 3}, {"B", 1}}, plan.Upsert)
	assert.Equal(t, 2, plan.Created)
	assert.Empty(t, plan.Delete)
}

func TestPlanSetEmptyReportDeletesAll(t *testing.T) {
	existing := []slotted{{"A", 1}, {"B", 1}}

	plan := planSet(existing, nil, bySlot)
	assert.Equal(t, []string{"A", "B"}, plan.Delete)
	assert.Empty(t, plan.Upsert)
}
