// Package services contains the implementation of all services used by the web server.
//
// The services are responsible for interacting with the database and performing anything that is not strictly HTTP-related.
// The services are injected into the web server, and are used to handle requests dispatched by it.
//
// Current services include:
//   - DatabaseService:
//     Owns the single MongoDB client of the process. It connects with bounded exponential backoff and reports
//     the connected / error lifecycle of the connection through the logger.
//   - UserService:
//     Is the main handler for dispatched http requests. It lists, creates, updates and deletes users through the
//     user collection manager and announces every change to the event publisher.
//   - AMQPService:
//     Is a amqp 0.9.1 broker-agnostic publisher that announces user changes to other services.
package services
