// Package mocks provides mock implementations of the stockgate ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the remote-facing interfaces.
// Simple hand-written doubles for the session ports live in internal/mocks/auth.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	docs := mocks.NewMockDocumentStore(ctrl)
//	docs.EXPECT().Get(gomock.Any(), "users", "uid-1").Return(doc, nil)
package mocks

// Generate mock for IdentityClient interface from internal/ports package.
// This creates MockIdentityClient with methods: SignInWithPassword, SignUp, Refresh
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_client_mock.go github.com/target/stockgate/internal/ports IdentityClient

// Generate mock for DocumentStore interface from internal/ports package.
// This creates MockDocumentStore with methods: Get, Set, Add, Update, Delete, List, FindBy
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=document_store_mock.go github.com/target/stockgate/internal/ports DocumentStore

// Generate mock for Directory interface from internal/ports package.
// This creates MockDirectory with methods: SignIn, SignUp, Create, Update, Delete, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=directory_mock.go github.com/target/stockgate/internal/ports Directory
