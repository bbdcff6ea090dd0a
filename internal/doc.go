// Package internal holds packages private to the wmsauth module.
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: protocol steps as plain functions over injected dependencies
//   - rate: login attempt limiting, Redis and in-memory
//   - security: security posture report
//   - httpapi, settings, logging: the wmsauth-server host
package internal
