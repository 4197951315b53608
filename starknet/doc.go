// Package starknet provides the Starknet primitives the session protocol is composed of:
// hex normalization, felt conversion, Starknet keccak and selectors, Poseidon hashing,
// SNIP-12 revision 1 typed-data hashing and Cairo 1 multicall compilation.
package starknet
