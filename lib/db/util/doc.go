// Package util provides helpers shared by the storage engines and the server:
//   - functions: FNV-1a string hashing and seed generation
//   - mapheap: a generic min-heap with key based access, used as the expiry queue
//     of the engine's garbage collector
package util
