// Package internal groups the packages of energosync, a daemon that exposes the
// accounts of a utility provider as entities of a home automation host.
//
// # Architecture
//
// The service is structured into several key packages:
//   - api: Provider account API client with automatic re-authentication
//   - entity: Entity capability contract, entities table and naming helpers
//   - registry: Update delegator registry and its readiness barrier
//   - orchestrator: Config entry and the refresh cycle fanning out over accounts and entity classes
//   - poller: Per-entity poll scheduler
//   - platforms: sensor and binary_sensor entity classes
//   - host: Entity sinks and state publishing (MQTT discovery, Kafka, state history)
//   - database: TimescaleDB integration for entity state history
//   - grpc: gRPC health service following refresh cycles
//   - scheduler: Periodic full re-discovery
//
// Key Features
//
//   - Discovery:
//     Every sub-platform registers an update delegator. Once all supported
//     platforms are registered, a refresh cycle creates or updates one entity
//     per account and data point.
//
//   - Failure isolation:
//     Each (account, entity class) pair refreshes in its own task. A failing
//     task is logged and counted without aborting the rest of the cycle.
//
//   - Polling:
//     Each live entity refreshes its own state on its scan interval and
//     publishes the result to the host.
//
// Example Usage
//
//	entry, err := orchestrator.NewEntry("main", cfg.Provider.Username, client, cfg.Integration)
//	hub := host.NewHub(entry.Entities(), publisher, clockwork.NewRealClock(), logger)
//	err = platforms.SetupAll(ctx, entry, hub)
//
// For more information about specific packages, see their respective
// documentation.
package internal
