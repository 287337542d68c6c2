package dummy

import (
	"github.com/mosaicnetworks/tsae/src/proxy/inmem"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/sirupsen/logrus"
)

// InmemDummyClient is an in-memory implementation of the dummy app. It actually
// imlplements the AppProxy interface, and can be passed in the node
// constructor directly
type InmemDummyClient struct {
	*inmem.InmemProxy
	state  *State
	logger *logrus.Entry
}

//NewInmemDummyClient instantiates an InemDummyClient
func NewInmemDummyClient(logger *logrus.Entry) *InmemDummyClient {
	state := NewState(logger)

	proxy := inmem.NewInmemProxy(state, logger)

	client := &InmemDummyClient{
		InmemProxy: proxy,
		state:      state,
		logger:     logger,
	}

	return client
}

//AddRecipe submits the creation of a recipe to the node via the InmemProxy
func (c *InmemDummyClient) AddRecipe(recipe Recipe) error {
	payload, err := recipe.Marshal()
	if err != nil {
		return err
	}
	c.InmemProxy.SubmitOperation(tsae.AddOperation, payload)
	return nil
}

//RemoveRecipe submits the deletion of a recipe to the node via the InmemProxy
func (c *InmemDummyClient) RemoveRecipe(title string) error {
	payload, err := Recipe{Title: title}.Marshal()
	if err != nil {
		return err
	}
	c.InmemProxy.SubmitOperation(tsae.RemoveOperation, payload)
	return nil
}

//GetRecipes returns the state's recipes
func (c *InmemDummyClient) GetRecipes() []Recipe {
	return c.state.GetRecipes()
}

//GetRecipe returns a recipe by title
func (c *InmemDummyClient) GetRecipe(title string) (Recipe, bool) {
	return c.state.GetRecipe(title)
}
