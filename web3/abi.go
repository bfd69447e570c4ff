package web3

// SilentVoteABI is the ABI of the SilentVote contract.
const SilentVoteABI = `[
	{"inputs":[{"internalType":"string","name":"_title","type":"string"},{"internalType":"uint256","name":"_durationMinutes","type":"uint256"}],"name":"createProposal","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_proposalId","type":"uint256"},{"internalType":"externalEbool","name":"_encryptedVote","type":"bytes32"},{"internalType":"bytes","name":"_inputProof","type":"bytes"}],"name":"vote","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_proposalId","type":"uint256"}],"name":"allowDecryption","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_proposalId","type":"uint256"},{"internalType":"uint64","name":"_decryptedYes","type":"uint64"},{"internalType":"uint64","name":"_decryptedNo","type":"uint64"},{"internalType":"bytes","name":"_decryptionProof","type":"bytes"}],"name":"submitDecryptedResults","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_proposalId","type":"uint256"}],"name":"getProposal","outputs":[{"internalType":"string","name":"title","type":"string"},{"internalType":"address","name":"creator","type":"address"},{"internalType":"uint256","name":"endTime","type":"uint256"},{"internalType":"uint8","name":"status","type":"uint8"},{"internalType":"uint64","name":"decryptedYes","type":"uint64"},{"internalType":"uint64","name":"decryptedNo","type":"uint64"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_proposalId","type":"uint256"}],"name":"getProposalHandles","outputs":[{"internalType":"bytes32","name":"yesHandle","type":"bytes32"},{"internalType":"bytes32","name":"noHandle","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_proposalId","type":"uint256"},{"internalType":"address","name":"_user","type":"address"}],"name":"hasUserVoted","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"_proposalId","type":"uint256"}],"name":"isVotingActive","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"proposalCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"proposalId","type":"uint256"},{"indexed":false,"internalType":"string","name":"title","type":"string"},{"indexed":false,"internalType":"address","name":"creator","type":"address"},{"indexed":false,"internalType":"uint256","name":"endTime","type":"uint256"}],"name":"ProposalCreated","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"proposalId","type":"uint256"},{"indexed":false,"internalType":"address","name":"voter","type":"address"}],"name":"VoteCast","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"proposalId","type":"uint256"},{"indexed":false,"internalType":"bytes32","name":"yesHandle","type":"bytes32"},{"indexed":false,"internalType":"bytes32","name":"noHandle","type":"bytes32"}],"name":"DecryptionReady","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"proposalId","type":"uint256"},{"indexed":false,"internalType":"uint64","name":"yesVotes","type":"uint64"},{"indexed":false,"internalType":"uint64","name":"noVotes","type":"uint64"}],"name":"ResultsDecrypted","type":"event"}
]`
