// internal/progress/tracker_test.go
package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageTransitions(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, StageIdle, tr.Snapshot().Stage)

	tr.SetStage(StagePreparing)
	tr.SetStage(StageCompressing)
	tr.SetStage(StageUploading)
	assert.Equal(t, StageUploading, tr.Snapshot().Stage)
}

func TestErrorStageIsAbsorbing(t *testing.T) {
	tr := NewTracker()
	tr.SetStage(StageUploading)
	tr.Fail("upload of transcript.pdf failed")

	tr.SetStage(StageFinalizing)
	tr.SetStage(StageCompleted)

	snap := tr.Snapshot()
	assert.Equal(t, StageError, snap.Stage)
	assert.Equal(t, "upload of transcript.pdf failed", snap.Message)
}

func TestSimulatedProgressIsMonotonicAndCapped(t *testing.T) {
	tr := NewTracker()
	tr.InitFiles([]string{"transcript.pdf"})

	var observed []int
	for _, p := range []int{10, 40, 30, 80, 99} {
		tr.Advance("transcript.pdf", p)
		observed = append(observed, tr.Snapshot().Files[0].Percent)
	}

	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1], "progress must never decrease")
	}
	assert.LessOrEqual(t, observed[len(observed)-1], 95, "simulated progress stays short of done")
}

func TestRealResultTakesPrecedence(t *testing.T) {
	tr := NewTracker()
	tr.InitFiles([]string{"transcript.pdf", "photo.jpg"})

	tr.Advance("transcript.pdf", 60)
	tr.CompleteFile("transcript.pdf")
	// Late simulated tick after the real result must be ignored.
	tr.Advance("transcript.pdf", 70)

	tr.Advance("photo.jpg", 50)
	tr.FailFile("photo.jpg", "connection reset")
	tr.Advance("photo.jpg", 80)

	snap := tr.Snapshot()
	require.Len(t, snap.Files, 2)
	assert.Equal(t, 100, snap.Files[0].Percent)
	assert.Equal(t, FileCompleted, snap.Files[0].State)
	assert.Equal(t, 0, snap.Files[1].Percent)
	assert.Equal(t, FileError, snap.Files[1].State)
	assert.Equal(t, "connection reset", snap.Files[1].Message)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	tr := NewTracker()
	ch := tr.Subscribe()

	tr.SetStage(StagePreparing)

	select {
	case snap := <-ch:
		assert.Equal(t, StagePreparing, snap.Stage)
	default:
		t.Fatal("expected a snapshot on the subscription channel")
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.InitFiles([]string{"a.pdf"})
	tr.Fail("boom")

	tr.Reset()

	snap := tr.Snapshot()
	assert.Equal(t, StageIdle, snap.Stage)
	assert.Empty(t, snap.Files)
	assert.Empty(t, snap.Message)
}
