package dummy

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mosaicnetworks/tsae/src/node/state"
	"github.com/sirupsen/logrus"
)

// Recipe is the item replicated by the dummy application. Recipes are
// identified by their title.
type Recipe struct {
	Title  string `json:"title"`
	Recipe string `json:"recipe"`
	Author string `json:"author"`
}

// Marshal ...
func (r Recipe) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecipe ...
func UnmarshalRecipe(data []byte) (Recipe, error) {
	var r Recipe
	err := json.Unmarshal(data, &r)
	return r, err
}

// State is the recipe collection. It implements the ProxyHandler interface.
type State struct {
	sync.RWMutex
	recipes   map[string]Recipe
	nodeState state.State
	logger    *logrus.Entry
}

// NewState ...
func NewState(logger *logrus.Entry) *State {
	return &State{
		recipes: make(map[string]Recipe),
		logger:  logger,
	}
}

// CreatedHandler adds a recipe. A recipe with the same title is replaced.
func (s *State) CreatedHandler(payload []byte) error {
	recipe, err := UnmarshalRecipe(payload)
	if err != nil {
		return fmt.Errorf("decoding recipe: %v", err)
	}

	s.Lock()
	s.recipes[recipe.Title] = recipe
	s.Unlock()

	s.logger.WithFields(logrus.Fields{
		"title":  recipe.Title,
		"author": recipe.Author,
	}).Debug("Recipe created")

	return nil
}

// RemovedHandler deletes the recipe whose title is given in the payload.
// Removing an unknown recipe is not an error: operations from different
// participants are not ordered.
func (s *State) RemovedHandler(payload []byte) error {
	recipe, err := UnmarshalRecipe(payload)
	if err != nil {
		return fmt.Errorf("decoding recipe: %v", err)
	}

	s.Lock()
	delete(s.recipes, recipe.Title)
	s.Unlock()

	s.logger.WithField("title", recipe.Title).Debug("Recipe removed")

	return nil
}

// StateChangeHandler ...
func (s *State) StateChangeHandler(st state.State) error {
	s.Lock()
	s.nodeState = st
	s.Unlock()

	s.logger.WithField("state", st).Debug("Node state changed")

	return nil
}

// GetRecipes returns the recipes sorted by title.
func (s *State) GetRecipes() []Recipe {
	s.RLock()
	defer s.RUnlock()

	res := make([]Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Title < res[j].Title
	})

	return res
}

// GetRecipe ...
func (s *State) GetRecipe(title string) (Recipe, bool) {
	s.RLock()
	defer s.RUnlock()
	r, ok := s.recipes[title]
	return r, ok
}

// NodeState returns the last state notified by the node.
func (s *State) NodeState() state.State {
	s.RLock()
	defer s.RUnlock()
	return s.nodeState
}
