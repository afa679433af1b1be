// Package catalog loads Akamai API description documents and indexes the
// operations they declare. Each document is parsed, its references resolved
// into inlined structures, and one OperationEntry emitted per (method, path).
// The resulting registry supports exact lookup by generated name and filtered
// search by namespace, method, free text, and pagination capability.
package catalog
