package swipe_manager

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stable_diffusion_chat/entities"
	"stable_diffusion_chat/image_generator"
	"stable_diffusion_chat/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu      sync.Mutex
	images  map[string]entities.MessageImages
	updates int
}

func newMemoryRepo(images ...entities.MessageImages) *memoryRepo {
	repo := &memoryRepo{images: map[string]entities.MessageImages{}}
	for _, image := range images {
		repo.images[image.MessageID] = image
	}

	return repo
}

func (r *memoryRepo) Create(_ context.Context, images *entities.MessageImages) (*entities.MessageImages, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.images[images.MessageID] = *images

	return images, nil
}

func (r *memoryRepo) Update(ctx context.Context, images *entities.MessageImages) (*entities.MessageImages, error) {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()

	return r.Create(ctx, images)
}

func (r *memoryRepo) GetByMessageID(_ context.Context, messageID string) (*entities.MessageImages, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	images, ok := r.images[messageID]
	if !ok {
		return nil, repositories.NewNotFoundError(messageID)
	}

	images.Swipes = append([]string(nil), images.Swipes...)

	return &images, nil
}

func (r *memoryRepo) get(messageID string) entities.MessageImages {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.images[messageID]
}

type fakeGenerator struct {
	image_generator.Generator

	result   *image_generator.Result
	err      error
	requests []image_generator.Request
	// entered, when set, is signalled and then release is awaited before returning.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, req image_generator.Request) (*image_generator.Result, error) {
	f.requests = append(f.requests, req)

	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	if req.OnImage != nil && f.result != nil && f.result.Image != nil {
		_ = req.OnImage(ctx, f.result.Image)
	}

	return f.result, f.err
}

type fakeDisplay struct {
	mu     sync.Mutex
	shown  []string
	stopOn int
}

func (d *fakeDisplay) ShowImage(_ context.Context, images *entities.MessageImages) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.shown = append(d.shown, images.Image)

	return nil
}

func (d *fakeDisplay) Show(context.Context) { d.stopOn++ }
func (d *fakeDisplay) Hide(context.Context) { d.stopOn-- }

func threeSwipes(current string) entities.MessageImages {
	return entities.MessageImages{
		MessageID:      "m1",
		ChannelID:      "c1",
		Title:          "a cat",
		Negative:       "dog",
		GenerationType: 3,
		Initiator:      entities.InitiatorWand,
		Image:          current,
		Swipes:         []string{"a.png", "b.png", "c.png"},
	}
}

func newManager(t *testing.T, repo *memoryRepo, generator *fakeGenerator) Manager {
	t.Helper()

	manager, err := New(Config{MessageImages: repo, Generator: generator})
	require.NoError(t, err)

	return manager
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{MessageImages: newMemoryRepo()})
	assert.Error(t, err)
}

func TestSwipe_MovesBetweenExistingImages(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		direction Direction
		expected  string
	}{
		{name: "left wraps from first to last", current: "a.png", direction: DirectionLeft, expected: "c.png"},
		{name: "left", current: "c.png", direction: DirectionLeft, expected: "b.png"},
		{name: "right advances", current: "a.png", direction: DirectionRight, expected: "b.png"},
		{name: "unknown image counts as newest", current: "gone.png", direction: DirectionLeft, expected: "b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo(threeSwipes(tt.current))
			generator := &fakeGenerator{}
			display := &fakeDisplay{}

			outcome, err := newManager(t, repo, generator).Swipe(context.Background(), "m1", tt.direction, display)
			require.NoError(t, err)

			assert.Equal(t, OutcomeMoved, outcome)
			assert.Equal(t, []string{tt.expected}, display.shown)
			assert.Equal(t, tt.expected, repo.get("m1").Image)
			assert.Equal(t, 1, repo.updates)
			assert.Empty(t, generator.requests)
		})
	}
}

func TestSwipe_RightAtEndGenerates(t *testing.T) {
	repo := newMemoryRepo(threeSwipes("c.png"))
	generator := &fakeGenerator{result: &image_generator.Result{
		Status: image_generator.StateResolved,
		Image:  &image_generator.GeneratedImage{Image: "d.png"},
	}}
	display := &fakeDisplay{}

	outcome, err := newManager(t, repo, generator).Swipe(context.Background(), "m1", DirectionRight, display)
	require.NoError(t, err)

	assert.Equal(t, OutcomeGenerated, outcome)
	assert.Equal(t, []string{"d.png"}, display.shown)

	stored := repo.get("m1")
	assert.Equal(t, []string{"a.png", "b.png", "c.png", "d.png"}, stored.Swipes)
	assert.Equal(t, "d.png", stored.Image)

	require.Len(t, generator.requests, 1)
	req := generator.requests[0]
	assert.Equal(t, "c1", req.ChannelID)
	assert.Equal(t, entities.InitiatorSwipe, req.Initiator)
	assert.Equal(t, "a cat", req.Prompt)
	assert.Equal(t, "dog", req.AdditionalNegative)
	assert.Equal(t, 3, req.GenerationType)
	assert.True(t, req.RandomizeSeed)
	assert.NotNil(t, req.OnImage)
	assert.Equal(t, display, req.Stop)
}

func TestSwipe_FailedGenerationLeavesListUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		result *image_generator.Result
		err    error
	}{
		{name: "failed", result: &image_generator.Result{Status: image_generator.StateFailed, Err: image_generator.ErrBackendRequestFailed}},
		{name: "aborted", result: &image_generator.Result{Status: image_generator.StateAborted, Err: image_generator.ErrAborted}},
		{name: "could not start", err: image_generator.ErrGenerationInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo(threeSwipes("c.png"))
			display := &fakeDisplay{}

			outcome, err := newManager(t, repo, &fakeGenerator{result: tt.result, err: tt.err}).
				Swipe(context.Background(), "m1", DirectionRight, display)
			assert.ErrorIs(t, err, tt.err)

			assert.Equal(t, OutcomeUnchanged, outcome)
			assert.Empty(t, display.shown)
			assert.Equal(t, threeSwipes("c.png"), repo.get("m1"))
			assert.Zero(t, repo.updates)
		})
	}
}

func TestSwipe_EmptyList(t *testing.T) {
	images := threeSwipes("")
	images.Swipes = nil
	repo := newMemoryRepo(images)
	display := &fakeDisplay{}

	outcome, err := newManager(t, repo, &fakeGenerator{}).Swipe(context.Background(), "m1", DirectionLeft, display)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Empty(t, display.shown)
}

func TestSwipe_BusyMessageIsIgnored(t *testing.T) {
	repo := newMemoryRepo(threeSwipes("c.png"))
	generator := &fakeGenerator{
		result:  &image_generator.Result{Status: image_generator.StateAborted},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	manager := newManager(t, repo, generator)

	done := make(chan Outcome, 1)

	go func() {
		outcome, _ := manager.Swipe(context.Background(), "m1", DirectionRight, &fakeDisplay{})
		done <- outcome
	}()

	<-generator.entered

	display := &fakeDisplay{}
	outcome, err := manager.Swipe(context.Background(), "m1", DirectionLeft, display)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBusy, outcome)
	assert.Empty(t, display.shown)

	close(generator.release)
	assert.Equal(t, OutcomeUnchanged, <-done)

	// The guard is released afterwards.
	outcome, err = manager.Swipe(context.Background(), "m1", DirectionLeft, display)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMoved, outcome)
}

func TestSwipe_Errors(t *testing.T) {
	manager := newManager(t, newMemoryRepo(), &fakeGenerator{})

	_, err := manager.Swipe(context.Background(), "m1", Direction("up"), &fakeDisplay{})
	assert.ErrorIs(t, err, ErrUnknownDirection)

	_, err = manager.Swipe(context.Background(), "missing", DirectionLeft, &fakeDisplay{})
	assert.True(t, errors.Is(err, &repositories.NotFoundError{}))
}
