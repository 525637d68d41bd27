// Package nexus implements the client side of the Nexus 3 REST asset
// listing: asset descriptors, cursor-based catalog pagination, and the
// SHA-1 helpers used for content-integrity verification.
package nexus
