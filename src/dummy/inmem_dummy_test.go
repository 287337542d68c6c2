package dummy

import (
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/mosaicnetworks/tsae/src/node/state"
	"github.com/mosaicnetworks/tsae/src/tsae"
)

func TestInmemDummyAppSide(t *testing.T) {
	logger := common.NewTestEntry(t, common.TestLogLevel)

	dummy := NewInmemDummyClient(logger)

	recipe := Recipe{Title: "pesto", Recipe: "basil, pine nuts", Author: "alice"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sub := <-dummy.SubmitCh():
			if sub.Type != tsae.AddOperation {
				t.Errorf("type should be add, not %s", sub.Type)
			}
			got, err := UnmarshalRecipe(sub.Payload)
			if err != nil {
				t.Errorf("err: %v", err)
			}
			if !reflect.DeepEqual(got, recipe) {
				t.Errorf("recipe mismatch: %#v %#v", recipe, got)
			}
		case <-time.After(time.Second):
			t.Errorf("timeout")
		}
	}()

	if err := dummy.AddRecipe(recipe); err != nil {
		t.Fatal(err)
	}
	<-done
}

func TestInmemDummyServerSide(t *testing.T) {
	logger := common.NewTestEntry(t, common.TestLogLevel)

	dummy := NewInmemDummyClient(logger)

	recipes := []Recipe{
		{Title: "tortilla", Recipe: "eggs, potatoes", Author: "bob"},
		{Title: "pesto", Recipe: "basil, pine nuts", Author: "alice"},
	}

	for _, r := range recipes {
		payload, _ := r.Marshal()
		if err := dummy.ApplyCreated(payload); err != nil {
			t.Fatal(err)
		}
	}

	expected := []Recipe{recipes[1], recipes[0]}
	if got := dummy.GetRecipes(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("recipes should be %v, not %v", expected, got)
	}

	removal, _ := Recipe{Title: "pesto"}.Marshal()
	if err := dummy.ApplyRemoved(removal); err != nil {
		t.Fatal(err)
	}
	if _, ok := dummy.GetRecipe("pesto"); ok {
		t.Fatalf("pesto should have been removed")
	}

	// removing twice is harmless
	if err := dummy.ApplyRemoved(removal); err != nil {
		t.Fatal(err)
	}

	if err := dummy.ApplyCreated([]byte("not json")); err == nil {
		t.Fatalf("malformed recipe should be rejected")
	}

	dummy.OnStateChanged(state.Suspended)
	if dummy.state.NodeState() != state.Suspended {
		t.Fatalf("state should be Suspended")
	}
}
