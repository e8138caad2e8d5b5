// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

/*
Package wstest provides websocket servers for testing websocket clients: an
echo server built on gorilla/websocket, as well as a scripted server sending
raw handshake responses.
*/
package wstest
