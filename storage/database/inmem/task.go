package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t.ID = newID()
	repo.db.tasks[t.ID] = t
	return t, nil
}

func (repo *taskRepository) GetTask(_ context.Context, id string) (task.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(_ context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.tasks {
		if filter.Match(t) {
			tasks = append(tasks, t)
		}
	}
	byCreatedAt(tasks, ascending(ordering, "created_at", false), func(t task.Task) time.Time { return t.CreatedAt })
	for _, ord := range ordering {
		if ord.Field != "due_date" {
			continue
		}
		asc := ord.Ascending
		// tasks without a due date go last
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueDate, tasks[j].DueDate
			if !a.Valid || !b.Valid {
				return a.Valid && !b.Valid
			}
			if asc {
				return a.Time.Before(b.Time)
			}
			return a.Time.After(b.Time)
		})
	}
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tasks[t.ID]; !ok {
		return task.Task{}, task.ErrNotFound
	}
	repo.db.tasks[t.ID] = t
	return t, nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.tasks, id)
	return nil
}
