package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/infrastructure/memory"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/repository/repotest"
)

func TestScheduleRepository(t *testing.T) {
	repotest.Run(t, func(_ *testing.T) repository.ScheduleRepository {
		return memory.NewScheduleRepository()
	})
}

func TestFindByID_ReturnsCopy(t *testing.T) {
	repo := memory.NewScheduleRepository()
	ctx := context.Background()
	id, _ := repo.Insert(ctx, repotest.NewPending("a", repotest.Base.Add(time.Hour)))

	s, _ := repo.FindByID(ctx, id)
	s.AppName = "mutated"

	again, _ := repo.FindByID(ctx, id)
	if again.AppName == "mutated" {
		t.Fatal("caller mutation leaked into stored row")
	}
}
