package service

import (
	"aptis_exam_backend/internal/model"
	"testing"

	"gorm.io/gorm"
)

type criterionStoreStub struct {
	created []*model.ScoringCriterion
	updated []*model.ScoringCriterion
	byID    map[uint]*model.ScoringCriterion
}

func newCriterionStoreStub() *criterionStoreStub {
	return &criterionStoreStub{byID: map[uint]*model.ScoringCriterion{}}
}

func (s *criterionStoreStub) Create(c *model.ScoringCriterion) error {
	s.created = append(s.created, c)
	return nil
}

func (s *criterionStoreStub) Update(c *model.ScoringCriterion) error {
	s.updated = append(s.updated, c)
	return nil
}

func (s *criterionStoreStub) Delete(id uint) error { return nil }

func (s *criterionStoreStub) FindByID(id uint) (*model.ScoringCriterion, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (s *criterionStoreStub) List(page, limit int) ([]model.ScoringCriterion, int64, error) {
	return nil, 0, nil
}

func validCriterion(weight float64) *model.ScoringCriterion {
	return &model.ScoringCriterion{Name: "Fluency", Weight: weight, MaxScore: 5, Enabled: true}
}

func TestCriterionCreateWeightBounds(t *testing.T) {
	cases := []struct {
		weight  float64
		wantErr bool
	}{
		{0.5, false},
		{1, false}, // 上边界含 1
		{0, true},
		{-0.1, true},
		{1.2, true},
	}
	for _, tc := range cases {
		store := newCriterionStoreStub()
		svc := NewCriterionService(store)

		err := svc.Create(validCriterion(tc.weight))
		if tc.wantErr {
			if err == nil {
				t.Errorf("Create(weight=%v) accepted, want rejection", tc.weight)
			}
			if len(store.created) != 0 {
				t.Errorf("Create(weight=%v) reached the store", tc.weight)
			}
		} else if err != nil {
			t.Errorf("Create(weight=%v) returned error: %v", tc.weight, err)
		}
	}
}

func TestCriterionCreateRejectsNonPositiveMaxScore(t *testing.T) {
	store := newCriterionStoreStub()
	svc := NewCriterionService(store)

	c := validCriterion(0.5)
	c.MaxScore = 0
	if err := svc.Create(c); err == nil {
		t.Error("Create accepted maxScore 0")
	}
}

func TestCriterionUpdateWeightBounds(t *testing.T) {
	store := newCriterionStoreStub()
	existing := validCriterion(0.5)
	existing.ID = 7
	store.byID[7] = existing
	svc := NewCriterionService(store)

	update := validCriterion(1.5)
	if _, err := svc.Update(7, update); err == nil {
		t.Error("Update accepted weight 1.5")
	}
	if len(store.updated) != 0 {
		t.Error("invalid update reached the store")
	}

	update = validCriterion(1)
	got, err := svc.Update(7, update)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got.Weight != 1 {
		t.Errorf("weight = %v, want 1", got.Weight)
	}
}
