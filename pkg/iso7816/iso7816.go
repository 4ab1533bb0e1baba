/*
Package iso7816 implements the APDU layer spoken by SIM and UICC cards
(ISO/IEC 7816-3/4, 3GPP TS 51.011, ETSI TS 102 221).

It provides the Command and Response APDU structures, the Class and
Instruction bytes, Status Word analysis and a Client driving a physical
reader. The command builders cover what remote file management needs: file
selection, binary and record access, ENVELOPE and GET RESPONSE.

# Status Words

Every response ends with a 2-byte Status Word (SW). Besides the ISO values,
SIM and UICC cards use a few specific ranges:
  - 0x9000: Success.
  - 0x61XX: Success, XX bytes available (ISO, UICC).
  - 0x9FXX: Success, XX bytes available (GSM SIM, class A0).
  - 0x91XX: Success, a proactive command of XX bytes is pending.
  - 0x9EXX: Data download error, XX bytes of response data available.
  - 0x9300: SIM Application Toolkit busy.
  - 0x6CXX: Wrong length expectation (XX is the correct length).

The Client retrieves pending response data automatically and returns the
whole exchange as a Trace.

# Usage Example: Delivering an ENVELOPE

	card, _ := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	client := iso7816.NewClient(card)

	trace, err := client.Send(iso7816.Envelope(iso7816.ClassUICC(), envelope))
	if err != nil {
	    log.Fatal(err)
	}

	// The status of the ENVELOPE itself, before any GET RESPONSE
	fmt.Println(trace.First().Response.Status.Verbose())

	// The data retrieved at the end of the exchange
	fmt.Printf("%X\n", trace.Last().Response.Data)
*/
package iso7816
