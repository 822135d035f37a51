// Package engine wires the protocol pipeline together: transport frames
// in, packets decoded into messages, messages dispatched to entities,
// indexed, persisted, and optionally exported as telemetry.
//
// The Engine implements transport.Protocol, so it is handed to a
// transport constructor as the owning protocol. Frames flow on the
// transport's single reader goroutine:
//
//	LineReceived → ParsePacket → message.New → Dispatcher.Process
//	             → StorageWorker.Submit → telemetry export
//
// Construction leaves the transport paused; Start opens the inbound
// gate once the pipeline is assembled. Stop tears down in order:
// pause and close the transport, drain and join the storage worker,
// then release the index.
package engine
