// Package session turns an incoming contact into a chat session.
//
// # Overview
//
// Given a company public key and a device identifier, Service.ResolveSession
// returns the customer's active conversation, creating the customer and the
// conversation along the way when they don't exist yet:
//
//	company  := FindCompanyByKey(companyKey)          // InvalidCompanyKey if absent
//	customer := FindCustomer / CreateCustomer         // insert-or-get
//	conv     := FindActiveConversation                // returned unchanged if found
//	agent    := SelectAgent(company)                  // first available in roster order
//	conv      = ProvisionConversation(agent, customer) // welcome message + atomic write
//
// # Concurrency
//
// The service holds no locks. Every create is a conditional insert in the
// store, so concurrent calls for the same (companyKey, deviceID) converge:
// the loser of the conversation race re-reads and returns the winner's
// conversation.
//
// # Errors
//
// Every failure is a *Error with one of four kinds. Callers branch with
// errors.Is against the sentinels or with KindOf:
//
//	if errors.Is(err, session.ErrNoAgentsAvailable) { ... }
//
// # Projection
//
// Project converts a hydrated conversation into the session init response
// sent to the client, rendering message bodies to HTML with goldmark.
package session
