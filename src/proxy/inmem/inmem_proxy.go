package inmem

import (
	"github.com/mosaicnetworks/tsae/src/node/state"
	"github.com/mosaicnetworks/tsae/src/proxy"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/sirupsen/logrus"
)

//InmemProxy implements the AppProxy interface natively
type InmemProxy struct {
	handler  proxy.ProxyHandler
	submitCh chan proxy.Submission
	logger   *logrus.Entry
}

// NewInmemProxy instantiates an InmemProxy from a set of handlers.
// If no logger, a new one is created
func NewInmemProxy(handler proxy.ProxyHandler,
	logger *logrus.Entry) *InmemProxy {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &InmemProxy{
		handler:  handler,
		submitCh: make(chan proxy.Submission),
		logger:   logger,
	}
}

/*******************************************************************************
* Submit                                                                       *
*******************************************************************************/

//SubmitOperation is called by the App to submit an operation to the node. It
//blocks until the node picks it up.
func (p *InmemProxy) SubmitOperation(opType tsae.OperationType, payload []byte) {
	//the node keeps the payload in its log, so it gets its own copy
	t := make([]byte, len(payload))

	copy(t, payload)

	p.submitCh <- proxy.Submission{
		Type:    opType,
		Payload: t,
	}
}

/*******************************************************************************
* Implement AppProxy Interface                                                 *
*******************************************************************************/

//SubmitCh returns the channel of submitted operations
func (p *InmemProxy) SubmitCh() chan proxy.Submission {
	return p.submitCh
}

//ApplyCreated calls the createdHandler
func (p *InmemProxy) ApplyCreated(payload []byte) error {
	err := p.handler.CreatedHandler(payload)

	p.logger.WithFields(logrus.Fields{
		"size": len(payload),
		"err":  err,
	}).Debug("InmemProxy.ApplyCreated")

	return err
}

//ApplyRemoved calls the removedHandler
func (p *InmemProxy) ApplyRemoved(payload []byte) error {
	err := p.handler.RemovedHandler(payload)

	p.logger.WithFields(logrus.Fields{
		"size": len(payload),
		"err":  err,
	}).Debug("InmemProxy.ApplyRemoved")

	return err
}

//OnStateChanged calls the StateChangeHandler
func (p *InmemProxy) OnStateChanged(state state.State) error {
	return p.handler.StateChangeHandler(state)
}
