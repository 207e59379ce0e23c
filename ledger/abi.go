package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// electionABI is the surface of the election contract this backend consumes.
// The contract itself (tallying, one-vote enforcement, phase transitions) is
// external; this is only its calling convention.
const electionABI = `[
  {"type":"function","name":"getElectionCount","stateMutability":"view","inputs":[],"outputs":[{"name":"count","type":"uint256"}]},
  {"type":"function","name":"getElection","stateMutability":"view","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[
    {"name":"id","type":"uint256"},
    {"name":"name","type":"string"},
    {"name":"description","type":"string"},
    {"name":"phase","type":"uint8"},
    {"name":"candidateCount","type":"uint256"},
    {"name":"totalVotes","type":"uint256"},
    {"name":"createdAt","type":"uint256"},
    {"name":"startedAt","type":"uint256"},
    {"name":"endedAt","type":"uint256"}]},
  {"type":"function","name":"getCandidate","stateMutability":"view","inputs":[{"name":"electionId","type":"uint256"},{"name":"candidateId","type":"uint256"}],"outputs":[
    {"name":"id","type":"uint256"},
    {"name":"name","type":"string"},
    {"name":"votes","type":"uint256"}]},
  {"type":"function","name":"getElectionPhase","stateMutability":"view","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[{"name":"phase","type":"uint8"}]},
  {"type":"function","name":"getVoteReceipt","stateMutability":"view","inputs":[{"name":"receiptId","type":"uint256"}],"outputs":[
    {"name":"receiptId","type":"uint256"},
    {"name":"electionId","type":"uint256"},
    {"name":"visibleTag","type":"bytes32"},
    {"name":"timestamp","type":"uint256"},
    {"name":"exists","type":"bool"}]},
  {"type":"function","name":"globalReceiptCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"counter","type":"uint256"}]},
  {"type":"function","name":"createElection","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"description","type":"string"}],"outputs":[]},
  {"type":"function","name":"addCandidate","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"},{"name":"name","type":"string"}],"outputs":[]},
  {"type":"function","name":"startElection","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"endElection","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"declareResults","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"registerVoter","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"},{"name":"enrollment","type":"string"},{"name":"faceHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"vote","stateMutability":"nonpayable","inputs":[{"name":"electionId","type":"uint256"},{"name":"enrollment","type":"string"},{"name":"faceHash","type":"bytes32"},{"name":"candidateId","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"ElectionCreated","anonymous":false,"inputs":[{"name":"electionId","type":"uint256","indexed":false}]},
  {"type":"event","name":"VoteCast","anonymous":false,"inputs":[{"name":"electionId","type":"uint256","indexed":true},{"name":"receiptId","type":"uint256","indexed":false}]}
]`

var contractABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(electionABI))
	if err != nil {
		panic("ledger: invalid contract ABI: " + err.Error())
	}
	return parsed
}
