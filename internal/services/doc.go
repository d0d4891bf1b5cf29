// Package services defines the shared error taxonomy and context
// annotations used across pipeline stages and collaborator clients.
//
// Every stage failure is tagged with one of the exported sentinel
// errors so the workflow manager and the API layer can classify it
// without string matching. Wrap builds the canonical
// "stage: operation: message: cause" detail chain.
package services
