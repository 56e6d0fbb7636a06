package messaging

import (
	"marketplace/internal/app/commands"
	"marketplace/internal/app/dto"
	"marketplace/internal/app/queries"
)

// Register wires every messaging handler onto the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, base Base) {
	getOrCreate := &GetOrCreateConversationHandler{Base: base}
	send := &SendMessageHandler{Base: base}

	commands.RegisterHandler[GetOrCreateConversationCommand, dto.Conversation](cmdBus, getOrCreateConversationKey, getOrCreate)
	commands.RegisterHandler[OpenConversationCommand, dto.Conversation](cmdBus, openConversationKey, &OpenConversationHandler{Base: base})
	commands.RegisterHandler[MarkConversationReadCommand, dto.ReadReceipt](cmdBus, markConversationReadKey, &MarkConversationReadHandler{Base: base})
	commands.RegisterHandler[ArchiveConversationCommand, dto.Conversation](cmdBus, archiveConversationKey, &ArchiveConversationHandler{Base: base})
	commands.RegisterHandler[SendMessageCommand, dto.Message](cmdBus, sendMessageKey, send)
	commands.RegisterHandler[SendDirectMessageCommand, dto.DirectMessage](cmdBus, sendDirectMessageKey, &SendDirectMessageHandler{Conversations: getOrCreate, Messages: send})
	commands.RegisterHandler[ListMessagesCommand, dto.MessagePage](cmdBus, listMessagesKey, &ListMessagesHandler{Base: base})
	commands.RegisterHandler[MarkMessageReadCommand, dto.Message](cmdBus, markMessageReadKey, &MarkMessageReadHandler{Base: base})
	commands.RegisterHandler[EditMessageCommand, dto.Message](cmdBus, editMessageKey, &EditMessageHandler{Base: base})

	queries.RegisterHandler[ListConversationsQuery, dto.ConversationList](queryBus, listConversationsKey, &ListConversationsHandler{Base: base})
	queries.RegisterHandler[UnreadTotalQuery, dto.UnreadTotal](queryBus, unreadTotalKey, &UnreadTotalHandler{Base: base})
	queries.RegisterHandler[SearchMessagesQuery, dto.MessageSearchResult](queryBus, searchMessagesKey, &SearchMessagesHandler{Base: base})
}
